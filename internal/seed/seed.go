package seed

import (
	"errors"
	"fmt"
	"log"

	"workit/internal/models"

	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	NumUsers        int
	ProjectsPerUser int
	NumPosts        int
	MaxComments     int
	MaxLikes        int
	MessagesPerPair int
	ShouldClean     bool
	SkipBcrypt      bool
	DryRun          bool
	MaxDays         int
	RandSeed        int64
}

// DefaultOptions is a small but complete demo data set.
func DefaultOptions() Options {
	return Options{
		NumUsers:        8,
		ProjectsPerUser: 4,
		NumPosts:        30,
		MaxComments:     4,
		MaxLikes:        6,
		MessagesPerPair: 3,
		MaxDays:         60,
	}
}

// Result counts what a seed run created.
type Result struct {
	Users    int
	Projects int
	Posts    int
	Comments int
	Likes    int
	Messages int
}

// demoAccounts always exist after seeding so a fresh checkout has known logins.
var demoAccounts = []string{"demo", "freelancer", "tester"}

// Seed populates the database with demo data.
func Seed(db *gorm.DB, opts Options) (*Result, error) {
	if opts.NumUsers < 2 {
		return nil, errors.New("seeding needs at least two users")
	}
	log.Printf("🌱 Starting database seeding with %d users and %d posts...", opts.NumUsers, opts.NumPosts)

	if opts.ShouldClean && !opts.DryRun {
		if err := clearData(db); err != nil {
			return nil, fmt.Errorf("failed to clear existing data: %w", err)
		}
	}

	f := NewFactory(db, opts)
	res := &Result{}

	users, err := createUsers(f, opts.NumUsers)
	if err != nil {
		return nil, fmt.Errorf("failed to create users: %w", err)
	}
	res.Users = len(users)
	log.Printf("✓ %d users created", res.Users)

	for _, u := range users {
		for i := 0; i < opts.ProjectsPerUser; i++ {
			if _, err := f.CreateProject(u); err != nil {
				return nil, fmt.Errorf("failed to create project: %w", err)
			}
			res.Projects++
		}
	}
	log.Printf("✓ %d projects created", res.Projects)

	if err := seedForum(f, users, opts, res); err != nil {
		return nil, err
	}
	log.Printf("✓ %d posts, %d comments, %d likes created", res.Posts, res.Comments, res.Likes)

	if err := seedMessages(f, users, opts.MessagesPerPair, res); err != nil {
		return nil, err
	}
	log.Printf("✓ %d messages created", res.Messages)

	log.Println("🎉 Database seeding completed successfully!")
	return res, nil
}

// clearData empties every application table, children first.
func clearData(db *gorm.DB) error {
	log.Println("🗑️  Clearing existing data...")
	all := db.Session(&gorm.Session{AllowGlobalUpdate: true})
	for _, m := range []interface{}{
		&models.Like{}, &models.Comment{}, &models.Post{},
		&models.Message{}, &models.Project{}, &models.User{},
	} {
		if err := all.Delete(m).Error; err != nil {
			return err
		}
	}
	return nil
}

func createUsers(f *Factory, count int) ([]*models.User, error) {
	users := make([]*models.User, 0, count)
	for i := 0; i < count; i++ {
		var overrides []func(*models.User)
		if i < len(demoAccounts) {
			name := demoAccounts[i]
			overrides = append(overrides, func(u *models.User) { u.Username = name })
		}
		u, err := f.CreateUser(overrides...)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, nil
}

func seedForum(f *Factory, users []*models.User, opts Options, res *Result) error {
	for i := 0; i < opts.NumPosts; i++ {
		author := users[f.rnd.Intn(len(users))]
		post, err := f.CreatePost(author)
		if err != nil {
			return fmt.Errorf("failed to create post: %w", err)
		}
		res.Posts++

		if opts.MaxComments > 0 {
			for c := f.rnd.Intn(opts.MaxComments + 1); c > 0; c-- {
				if _, err := f.CreateComment(users[f.rnd.Intn(len(users))], post); err != nil {
					return fmt.Errorf("failed to create comment: %w", err)
				}
				res.Comments++
			}
		}

		if opts.MaxLikes > 0 {
			before := post.Likes
			for _, idx := range f.rnd.Perm(len(users))[:min(opts.MaxLikes, len(users))] {
				if f.rnd.Intn(2) == 0 {
					continue
				}
				if err := f.CreateLike(users[idx], post); err != nil {
					return fmt.Errorf("failed to create like: %w", err)
				}
			}
			res.Likes += post.Likes - before
		}
	}
	return nil
}

// seedMessages writes a short thread between each user and the next one.
func seedMessages(f *Factory, users []*models.User, perPair int, res *Result) error {
	for i := range users {
		a, b := users[i], users[(i+1)%len(users)]
		if a.ID == b.ID {
			continue
		}
		for n := 0; n < perPair; n++ {
			from, to := a, b
			if n%2 == 1 {
				from, to = b, a
			}
			if _, err := f.CreateMessage(from, to); err != nil {
				return fmt.Errorf("failed to create message: %w", err)
			}
			res.Messages++
		}
	}
	return nil
}
