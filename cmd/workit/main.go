// Command workit is a terminal client for the WorkIt API. Each run signs in,
// performs one action and signs out.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"syscall"
	"time"

	"workit/internal/client"
	"workit/internal/config"
	"workit/internal/session"
	"workit/internal/viewstate"

	"github.com/joho/godotenv"
)

const usageText = `usage: workit -u USER -p PASSWORD <command> [args]

commands:
  projects            list projects and dashboard totals
  balance AMOUNT      show the remaining balance after AMOUNT of expenses
  paid ID             toggle a project's paid flag
  invoice ID          save a project's invoice PDF
  posts               list forum posts
  like ID             toggle a like on a post
  share ID            save a post's share card
  watch               stay online and print presence changes until interrupted`

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Failed to read .env: %v", err)
	}

	username := flag.String("u", os.Getenv("WORKIT_USER"), "username")
	password := flag.String("p", os.Getenv("WORKIT_PASSWORD"), "password")
	outDir := flag.String("out", ".", "directory for invoices and share cards")
	verbose := flag.Bool("v", false, "log session activity")
	flag.Usage = func() { fmt.Fprintln(os.Stderr, usageText) }
	flag.Parse()
	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cc, err := config.LoadClientConfig()
	if err != nil {
		log.Fatalf("Failed to load client configuration: %v", err)
	}
	api, err := client.New(cc, client.WithLogger(logger), client.WithUserAgent("workit-cli/1.0"))
	if err != nil {
		log.Fatalf("Failed to create client: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sess := session.New(api, session.WithLogger(logger), session.WithDownloadDir(*outDir))
	if err := sess.Login(ctx, *username, *password); err != nil {
		if sess.State().User == nil {
			log.Fatalf("%s", client.Message(err))
		}
		logger.Warn("dashboard partially loaded", slog.String("error", err.Error()))
	}

	runErr := run(ctx, sess, flag.Args())

	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sess.Close(closeCtx)

	if runErr != nil {
		log.Fatalf("%s", client.Message(runErr))
	}
}

func run(ctx context.Context, sess *session.Session, args []string) error {
	idArg := func() (uint, error) {
		if len(args) < 2 {
			return 0, fmt.Errorf("%s needs an id", args[0])
		}
		id, err := strconv.ParseUint(args[1], 10, 64)
		if err != nil || id == 0 {
			return 0, fmt.Errorf("invalid id %q", args[1])
		}
		return uint(id), nil
	}

	switch args[0] {
	case "projects":
		printProjects(sess.State())
		return nil

	case "balance":
		if len(args) < 2 {
			return fmt.Errorf("balance needs an amount")
		}
		sess.SetExpenses(args[1])
		printProjects(sess.State())
		return nil

	case "paid":
		id, err := idArg()
		if err != nil {
			return err
		}
		if err := sess.TogglePaid(ctx, id); err != nil {
			return err
		}
		printProjects(sess.State())
		return nil

	case "invoice":
		id, err := idArg()
		if err != nil {
			return err
		}
		path, err := sess.ExportInvoice(ctx, id)
		if err != nil {
			return err
		}
		fmt.Println("saved", path)
		return nil

	case "posts":
		for _, p := range sess.State().Posts {
			liked := " "
			if p.Liked {
				liked = "♥"
			}
			fmt.Printf("#%-4d %s %-16s %3d likes %3d comments  %s\n", p.ID, liked, p.Author.Username, p.Likes, p.Comments, p.TimeAgo)
		}
		return nil

	case "like":
		id, err := idArg()
		if err != nil {
			return err
		}
		if err := sess.ToggleLike(ctx, id); err != nil {
			return err
		}
		if p, ok := sess.State().Post(id); ok {
			fmt.Printf("#%d liked=%t likes=%d\n", p.ID, p.Liked, p.Likes)
		}
		return nil

	case "share":
		id, err := idArg()
		if err != nil {
			return err
		}
		out, err := sess.SharePost(ctx, id, client.ShareOptions{})
		if err != nil {
			return err
		}
		fmt.Println("saved", out.Path)
		if out.Instructions != "" {
			fmt.Println(out.Instructions)
		}
		return nil

	case "watch":
		return watch(ctx, sess)
	}
	return fmt.Errorf("unknown command %q", args[0])
}

func printProjects(st viewstate.State) {
	for _, p := range st.Projects {
		status := "PENDING"
		if p.IsPaid {
			status = "PAID"
		}
		fmt.Printf("#%-4d %-8s %-24s %-28s %s\n", p.ID, status, p.ClientName, p.ProjectTitle, p.TotalAmount.StringFixed(2))
	}
	s := st.Stats
	fmt.Printf("\n%d projects, %d paid, earned %s, pending %s\n",
		s.TotalProjects, s.PaidProjects, s.TotalEarnings.StringFixed(2), s.PendingEarnings.StringFixed(2))
	if !s.Expenses.IsZero() {
		fmt.Printf("expenses %s, remaining %s\n", s.Expenses.StringFixed(2), s.RemainingBalance.StringFixed(2))
	}
}

// watch prints the online set whenever it changes.
func watch(ctx context.Context, sess *session.Session) error {
	updates, cancel := sess.Store().Subscribe()
	defer cancel()

	names := map[uint]string{}
	var last string
	for {
		select {
		case <-ctx.Done():
			return nil
		case st, ok := <-updates:
			if !ok {
				return nil
			}
			for _, u := range st.Users {
				names[u.ID] = u.Username
			}
			var online []string
			for _, id := range st.OnlineIDs() {
				if n, ok := names[id]; ok {
					online = append(online, n)
				} else {
					online = append(online, "#"+strconv.FormatUint(uint64(id), 10))
				}
			}
			sort.Strings(online)
			line := fmt.Sprint(online)
			if line != last {
				fmt.Printf("%s online: %s\n", time.Now().Format("15:04:05"), line)
				last = line
			}
			if st.Alert != "" {
				fmt.Fprintln(os.Stderr, st.Alert)
				sess.Store().Dispatch(viewstate.AlertCleared{})
			}
		}
	}
}
