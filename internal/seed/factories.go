// Package seed provides helpers to create demo data for the application
// database. These helpers are intended for development and testing only.
package seed

import (
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"workit/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultPassword is the password of every seeded account.
const DefaultPassword = "password123"

// Factory builds domain entities and persists them to the database.
type Factory struct {
	db   *gorm.DB
	opts Options
	rnd  *rand.Rand
	// synthetic ID counter when running in DryRun mode
	nextID uint

	passwordHash string
}

// NewFactory creates a Factory bound to db. A non-zero opts.RandSeed makes
// the generated data repeatable.
func NewFactory(db *gorm.DB, opts Options) *Factory {
	seed := opts.RandSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	gofakeit.Seed(seed)
	// #nosec G404: acceptable for seeding
	return &Factory{db: db, opts: opts, rnd: rand.New(rand.NewSource(seed)), nextID: 1000}
}

func (f *Factory) hash() string {
	if f.passwordHash != "" {
		return f.passwordHash
	}
	if f.opts.SkipBcrypt {
		f.passwordHash = DefaultPassword
		return f.passwordHash
	}
	h, _ := bcrypt.GenerateFromPassword([]byte(DefaultPassword), bcrypt.DefaultCost)
	f.passwordHash = string(h)
	return f.passwordHash
}

func (f *Factory) pastTime() time.Time {
	maxDays := f.opts.MaxDays
	if maxDays <= 0 {
		maxDays = 90
	}
	back := time.Duration(f.rnd.Intn(maxDays))*24*time.Hour +
		time.Duration(f.rnd.Intn(24))*time.Hour +
		time.Duration(f.rnd.Intn(60))*time.Minute
	return time.Now().Add(-back)
}

func (f *Factory) save(value interface{}, setID func(uint)) error {
	if f.opts.DryRun {
		f.nextID++
		setID(f.nextID)
		return nil
	}
	return f.db.Create(value).Error
}

// username returns a lower-case handle that passes username validation.
func (f *Factory) username() string {
	base := strings.ToLower(gofakeit.FirstName())
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		return -1
	}, base)
	if len(base) > 20 {
		base = base[:20]
	}
	if len(base) < 3 {
		base += "dev"
	}
	return fmt.Sprintf("%s%d", base, gofakeit.Number(100, 9999))
}

// CreateUser constructs and persists a sample user.
func (f *Factory) CreateUser(overrides ...func(*models.User)) (*models.User, error) {
	user := &models.User{
		Username: f.username(),
		Password: f.hash(),
	}
	for _, override := range overrides {
		override(user)
	}
	if err := f.save(user, func(id uint) { user.ID = id }); err != nil {
		return nil, err
	}
	return user, nil
}

// BuildProjectForm returns a random form in either rate mode.
func (f *Factory) BuildProjectForm() models.ProjectForm {
	form := models.ProjectForm{
		ClientName:   gofakeit.Company(),
		ProjectTitle: strings.TrimSuffix(gofakeit.Sentence(3), "."),
		Deadline:     gofakeit.DateRange(time.Now(), time.Now().AddDate(0, 6, 0)).Format("2006-01-02"),
	}
	if f.rnd.Intn(3) == 0 {
		form.RateType = models.RateHourly
		form.HourlyRate = models.NewAmount(float64(gofakeit.Number(10, 50) * 10000))
		form.EstimatedHours = models.NewAmount(float64(gofakeit.Number(5, 120)))
		return form
	}
	form.RateType = models.RateFeature
	for i := 0; i < 1+f.rnd.Intn(5); i++ {
		form.Features = append(form.Features, models.FeatureInput{
			Name:  gofakeit.BuzzWord() + " " + gofakeit.HipsterWord(),
			Price: models.NewAmount(float64(gofakeit.Number(5, 200) * 50000)),
		})
	}
	return form
}

// CreateProject persists a random project owned by owner. Totals are computed
// from the form the same way the API computes them.
func (f *Factory) CreateProject(owner *models.User, overrides ...func(*models.Project)) (*models.Project, error) {
	p := &models.Project{UserID: owner.ID}
	p.ApplyForm(f.BuildProjectForm())
	p.IsPaid = f.rnd.Intn(2) == 0
	p.CreatedAt = f.pastTime()
	for _, override := range overrides {
		override(p)
	}
	if err := f.save(p, func(id uint) { p.ID = id }); err != nil {
		return nil, err
	}
	return p, nil
}

// CreatePost persists a forum post by author.
func (f *Factory) CreatePost(author *models.User, overrides ...func(*models.Post)) (*models.Post, error) {
	post := &models.Post{
		UserID:    author.ID,
		Content:   gofakeit.Paragraph(1, 2+f.rnd.Intn(3), 8, " "),
		CreatedAt: f.pastTime(),
	}
	if len(post.Content) > 1000 {
		post.Content = post.Content[:1000]
	}
	for _, override := range overrides {
		override(post)
	}
	if err := f.save(post, func(id uint) { post.ID = id }); err != nil {
		return nil, err
	}
	return post, nil
}

// CreateComment persists a comment and bumps the post's comment counter.
func (f *Factory) CreateComment(author *models.User, post *models.Post) (*models.Comment, error) {
	comment := &models.Comment{
		PostID:    post.ID,
		UserID:    author.ID,
		Content:   gofakeit.Sentence(8),
		CreatedAt: post.CreatedAt.Add(time.Duration(1+f.rnd.Intn(600)) * time.Minute),
	}
	if f.opts.DryRun {
		f.nextID++
		comment.ID = f.nextID
		post.Comments++
		return comment, nil
	}
	err := f.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(comment).Error; err != nil {
			return err
		}
		return tx.Model(&models.Post{}).Where("id = ?", post.ID).
			UpdateColumn("comments", gorm.Expr("comments + 1")).Error
	})
	if err != nil {
		return nil, err
	}
	post.Comments++
	return comment, nil
}

// CreateLike records user's like on post once; repeats are ignored.
func (f *Factory) CreateLike(user *models.User, post *models.Post) error {
	if f.opts.DryRun {
		post.Likes++
		return nil
	}
	return f.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.Like{PostID: post.ID, UserID: user.ID})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		post.Likes++
		return tx.Model(&models.Post{}).Where("id = ?", post.ID).
			UpdateColumn("likes", gorm.Expr("likes + 1")).Error
	})
}

// CreateMessage persists a direct message from sender to receiver.
func (f *Factory) CreateMessage(sender, receiver *models.User, overrides ...func(*models.Message)) (*models.Message, error) {
	msg := &models.Message{
		SenderID:   sender.ID,
		ReceiverID: receiver.ID,
		Content:    gofakeit.Sentence(10),
		IsRead:     f.rnd.Intn(3) > 0,
		CreatedAt:  f.pastTime(),
	}
	for _, override := range overrides {
		override(msg)
	}
	if err := f.save(msg, func(id uint) { msg.ID = id }); err != nil {
		return nil, err
	}
	if f.opts.DryRun {
		log.Printf("[dry-run] CreateMessage: %d -> %d", msg.SenderID, msg.ReceiverID)
	}
	return msg, nil
}
