package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"workit/internal/export"
	"workit/internal/featureflags"
	"workit/internal/models"
	"workit/internal/observability"
	"workit/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

const invoiceStorageKind = "invoices"

// ShareOptions describes the client asking for a share card.
type ShareOptions struct {
	UserAgent     string
	Accept        string
	CanShareFiles bool
}

// ShareResult is a rendered card together with the delivery plan.
type ShareResult struct {
	Plan     export.SharePlan
	Artifact *export.Artifact
	Shares   int
}

// ExportService renders invoices and share cards.
type ExportService struct {
	projectRepo repository.ProjectRepository
	posts       *PostService
	renderer    export.PDFRenderer
	storage     export.ObjectStorage
	flags       *featureflags.Manager
	now         func() time.Time
}

// NewExportService wires the export pipeline. renderer and storage may be nil;
// the matching operations then report that they are not configured.
func NewExportService(
	projectRepo repository.ProjectRepository,
	posts *PostService,
	renderer export.PDFRenderer,
	storage export.ObjectStorage,
	flags *featureflags.Manager,
) *ExportService {
	return &ExportService{
		projectRepo: projectRepo,
		posts:       posts,
		renderer:    renderer,
		storage:     storage,
		flags:       flags,
		now:         systemNow,
	}
}

// CanStore reports whether invoices can be uploaded for userID.
func (s *ExportService) CanStore(userID uint) bool {
	return s.storage != nil && s.flags.Enabled(featureflags.InvoiceStorage, userID)
}

// InvoicePDF renders the owner's project as a single-page PDF.
func (s *ExportService) InvoicePDF(ctx context.Context, userID, projectID uint) (artifact *export.Artifact, err error) {
	ctx, span := observability.StartSpan(ctx, "service", "InvoicePDF",
		attribute.Int64("project_id", int64(projectID)),
	)
	defer func() { observability.EndSpan(span, err) }()

	if s.renderer == nil {
		return nil, models.NewInternalError(errors.New("invoice renderer is not configured"))
	}
	project, err := s.projectRepo.GetForOwner(ctx, projectID, userID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() { observability.ObserveRender("invoice", start, err) }()

	html, err := export.RenderInvoiceHTML(project, s.now())
	if err != nil {
		return nil, renderFailure(err)
	}
	res, err := s.renderer.RenderPDF(ctx, html)
	if err != nil {
		return nil, renderFailure(err)
	}
	return &export.Artifact{
		FileName:    export.InvoiceFileName(project),
		ContentType: "application/pdf",
		Data:        res.PDF,
	}, nil
}

// StoreInvoice renders the invoice, uploads it and returns a presigned link.
func (s *ExportService) StoreInvoice(ctx context.Context, userID, projectID uint) (*export.StoredArtifact, error) {
	if !s.CanStore(userID) {
		return nil, models.NewValidationError("invoice storage is not available")
	}
	artifact, err := s.InvoicePDF(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	stored, err := export.Upload(ctx, s.storage, invoiceStorageKind, userID, artifact)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return stored, nil
}

// SharePost counts a share and renders the post's card for the requesting
// client, with the ordered plan for getting it onto the device.
func (s *ExportService) SharePost(ctx context.Context, userID, postID uint, opts ShareOptions) (result *ShareResult, err error) {
	post, err := s.posts.SharePost(ctx, postID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() { observability.ObserveRender("share_card", start, err) }()

	format := export.FormatPNG
	if s.flags.Enabled(featureflags.ShareWebP, userID) && acceptsWebP(opts.Accept) {
		format = export.FormatWebP
	}

	now := s.now()
	plan := export.PlanShare(export.ShareRequest{
		Username:      post.User.Username,
		Content:       post.Content,
		UserAgent:     opts.UserAgent,
		CanShareFiles: opts.CanShareFiles,
		Format:        format,
		At:            now,
	})

	img := export.RenderCard(export.NewCardData(post, now), plan.Scale)
	data, err := export.EncodeImage(img, format)
	if err != nil {
		return nil, renderFailure(err)
	}

	return &ShareResult{
		Plan: plan,
		Artifact: &export.Artifact{
			FileName:    plan.FileName,
			ContentType: plan.ContentType,
			Data:        data,
		},
		Shares: post.Shares,
	}, nil
}

func acceptsWebP(accept string) bool {
	return strings.Contains(strings.ToLower(accept), "image/webp")
}

func renderFailure(err error) error {
	if export.RenderErrorCode(err) == export.ErrCodeInvalidInput {
		return models.NewValidationError(err.Error())
	}
	return models.NewInternalError(err)
}
