package export

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Platform is the device family a share request came from.
type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
	PlatformDesktop Platform = "desktop"
)

// ShareMethod is one step of a share plan.
type ShareMethod string

const (
	MethodNativeShare ShareMethod = "native_share"
	MethodDeepLink    ShareMethod = "deep_link"
	MethodDownload    ShareMethod = "download"
)

// ShareTitle is the title passed to the native share sheet.
const ShareTitle = "Post from WorkIt!"

// Device scales of share cards.
const (
	MobileScale  = 1.5
	DesktopScale = 2.0
)

const shareExcerptRunes = 50

var (
	mobileUA  = regexp.MustCompile(`(?i)Android|iPhone|iPad|iPod|BlackBerry|IEMobile|Opera Mini`)
	iosUA     = regexp.MustCompile(`(?i)iPhone|iPad|iPod`)
	androidUA = regexp.MustCompile(`(?i)Android`)
)

// IsMobile reports whether the User-Agent belongs to a mobile device.
func IsMobile(userAgent string) bool {
	return mobileUA.MatchString(userAgent)
}

// DetectPlatform classifies a User-Agent.
func DetectPlatform(userAgent string) Platform {
	switch {
	case iosUA.MatchString(userAgent):
		return PlatformIOS
	case androidUA.MatchString(userAgent):
		return PlatformAndroid
	default:
		return PlatformDesktop
	}
}

// ScaleFor returns the card device scale for a User-Agent.
func ScaleFor(userAgent string) float64 {
	if IsMobile(userAgent) {
		return MobileScale
	}
	return DesktopScale
}

// ShareFileName names a share card: workit_post_{username}_{D}{M}{YY}_{H}{m}.{ext}
// Day, month, hour and minute are unpadded; the year has two digits.
func ShareFileName(username string, at time.Time, format ImageFormat) string {
	stamp := fmt.Sprintf("%d%d%02d_%d%d", at.Day(), int(at.Month()), at.Year()%100, at.Hour(), at.Minute())
	return SafeFileName(fmt.Sprintf("workit_post_%s_%s.%s", username, stamp, format.Extension()))
}

// ShareText is the message passed along with the card.
func ShareText(content, username string) string {
	r := []rune(content)
	if len(r) > shareExcerptRunes {
		r = r[:shareExcerptRunes]
	}
	return fmt.Sprintf("\"%s...\" by %s", string(r), username)
}

// ShareStep is one way of delivering the card, tried in plan order.
type ShareStep struct {
	Method       ShareMethod `json:"method"`
	URL          string      `json:"url,omitempty"`
	Instructions string      `json:"instructions,omitempty"`
}

// SharePlan is the ordered fallback chain for delivering a share card.
type SharePlan struct {
	Platform    Platform    `json:"platform"`
	Title       string      `json:"title"`
	Text        string      `json:"text"`
	FileName    string      `json:"file_name"`
	ContentType string      `json:"content_type"`
	Scale       float64     `json:"scale"`
	Steps       []ShareStep `json:"steps"`
}

// ShareRequest describes the post being shared and the requesting client.
type ShareRequest struct {
	Username      string
	Content       string
	UserAgent     string
	CanShareFiles bool
	Format        ImageFormat
	At            time.Time
}

const (
	mobileInstructions  = "The image was saved to your device. Open Instagram, start a new Story and pick the image from your gallery."
	desktopInstructions = "The image was downloaded. Open instagram.com, create a new post and upload the downloaded image."
)

// PlanShare builds the fallback chain: native share when the client can share
// files, a deep link into Instagram on mobile, and a download last.
func PlanShare(req ShareRequest) SharePlan {
	if req.Format == "" {
		req.Format = FormatPNG
	}
	platform := DetectPlatform(req.UserAgent)
	plan := SharePlan{
		Platform:    platform,
		Title:       ShareTitle,
		Text:        ShareText(req.Content, req.Username),
		FileName:    ShareFileName(req.Username, req.At, req.Format),
		ContentType: req.Format.ContentType(),
		Scale:       ScaleFor(req.UserAgent),
	}

	if req.CanShareFiles {
		plan.Steps = append(plan.Steps, ShareStep{Method: MethodNativeShare})
	}
	if link := deepLink(platform, req.Format); link != "" {
		plan.Steps = append(plan.Steps, ShareStep{Method: MethodDeepLink, URL: link})
	}

	instructions := desktopInstructions
	if IsMobile(req.UserAgent) {
		instructions = mobileInstructions
	}
	plan.Steps = append(plan.Steps, ShareStep{Method: MethodDownload, Instructions: instructions})
	return plan
}

func deepLink(p Platform, format ImageFormat) string {
	switch p {
	case PlatformIOS:
		return "instagram-stories://share"
	case PlatformAndroid:
		return strings.Join([]string{
			"intent://share#Intent",
			"package=com.instagram.android",
			"scheme=instagram",
			"action=android.intent.action.SEND",
			"type=" + format.ContentType(),
			"end",
		}, ";")
	default:
		return ""
	}
}
