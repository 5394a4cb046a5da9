package export

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strings"
	"time"
	"unicode/utf8"

	"workit/internal/models"

	"github.com/chai2010/webp"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// ImageFormat is the encoding of a share card.
type ImageFormat string

const (
	FormatPNG  ImageFormat = "png"
	FormatWebP ImageFormat = "webp"
)

// ContentType returns the MIME type for the format.
func (f ImageFormat) ContentType() string {
	if f == FormatWebP {
		return "image/webp"
	}
	return "image/png"
}

// Extension returns the file extension without the dot.
func (f ImageFormat) Extension() string {
	if f == FormatWebP {
		return "webp"
	}
	return "png"
}

// Card geometry at scale 1.
const (
	CardWidth = 400

	cardPadding    = 25
	avatarSize     = 50
	headerTop      = 30
	messageTop     = headerTop + avatarSize + 20
	messagePadding = 20
	accentWidth    = 4
	lineHeight     = 20
	footerHeight   = 95
	webpQuality    = 90
)

const (
	footerURL     = "https://workitt.vercel.app"
	footerTagline = "The freelancer collaboration platform"
)

var (
	colorWhite    = color.RGBA{0xff, 0xff, 0xff, 0xff}
	colorInk      = color.RGBA{0x1a, 0x20, 0x2c, 0xff}
	colorBody     = color.RGBA{0x2d, 0x37, 0x48, 0xff}
	colorMuted    = color.RGBA{0x71, 0x80, 0x96, 0xff}
	colorAccent   = color.RGBA{0x66, 0x7e, 0xea, 0xff}
	colorBubble   = color.RGBA{0xf7, 0xfa, 0xfc, 0xff}
	colorFooter   = color.RGBA{0xf8, 0xf9, 0xfa, 0xff}
	colorDivider  = color.RGBA{0xe2, 0xe8, 0xf0, 0xff}
	colorAvatarBg = color.RGBA{0x76, 0x4b, 0xa2, 0xff}
	colorBlack    = color.RGBA{0x00, 0x00, 0x00, 0xff}
)

// CardData is what a share card shows.
type CardData struct {
	Username string
	Avatar   string
	TimeAgo  string
	Content  string
}

// NewCardData builds card content from a post with its author loaded.
func NewCardData(p *models.Post, now time.Time) CardData {
	return CardData{
		Username: p.User.Username,
		Avatar:   models.AvatarInitial(p.User.Username),
		TimeAgo:  models.TimeAgo(p.CreatedAt, now),
		Content:  p.Content,
	}
}

// RenderCard draws the card at scale 1 and resamples it to the requested
// device scale. The card font covers ASCII; other runes render as boxes.
func RenderCard(data CardData, scale float64) *image.RGBA {
	face := basicfont.Face7x13
	charsPerLine := (CardWidth - 2*cardPadding - 2*messagePadding - accentWidth) / face.Advance
	lines := WrapText(data.Content, charsPerLine)
	if len(lines) == 0 {
		lines = []string{""}
	}

	bubbleHeight := 2*messagePadding + len(lines)*lineHeight
	footerTop := messageTop + bubbleHeight + cardPadding
	height := footerTop + footerHeight

	base := image.NewRGBA(image.Rect(0, 0, CardWidth, height))
	fill(base, base.Bounds(), colorWhite)

	// Header: avatar circle, username and relative time.
	drawCircle(base, cardPadding+avatarSize/2, headerTop+avatarSize/2, avatarSize/2, colorAvatarBg)
	drawCentered(base, face, data.Avatar, cardPadding+avatarSize/2, headerTop+avatarSize/2+4, colorWhite)
	textX := cardPadding + avatarSize + 15
	drawText(base, face, data.Username, textX, headerTop+20, colorInk)
	drawText(base, face, data.TimeAgo, textX, headerTop+38, colorMuted)

	// Message bubble with an accent bar on the left.
	bubble := image.Rect(cardPadding, messageTop, CardWidth-cardPadding, messageTop+bubbleHeight)
	fill(base, bubble, colorBubble)
	fill(base, image.Rect(bubble.Min.X, bubble.Min.Y, bubble.Min.X+accentWidth, bubble.Max.Y), colorAccent)
	for i, line := range lines {
		y := messageTop + messagePadding + (i+1)*lineHeight - 6
		drawText(base, face, line, bubble.Min.X+accentWidth+messagePadding, y, colorBody)
	}

	// Footer watermark.
	fill(base, image.Rect(0, footerTop, CardWidth, height), colorFooter)
	fill(base, image.Rect(0, footerTop, CardWidth, footerTop+1), colorDivider)
	drawCentered(base, face, "WorkIt!", CardWidth/2, footerTop+30, colorBlack)
	drawCentered(base, face, footerURL, CardWidth/2, footerTop+52, colorAccent)
	drawCentered(base, face, footerTagline, CardWidth/2, footerTop+72, colorMuted)

	if scale <= 0 || scale == 1 {
		return base
	}
	dst := image.NewRGBA(image.Rect(0, 0, int(float64(CardWidth)*scale+0.5), int(float64(height)*scale+0.5)))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), base, base.Bounds(), xdraw.Over, nil)
	return dst
}

// EncodeImage encodes img in the given format.
func EncodeImage(img image.Image, format ImageFormat) ([]byte, error) {
	buf := new(bytes.Buffer)
	switch format {
	case FormatWebP:
		if err := webp.Encode(buf, img, &webp.Options{Quality: webpQuality}); err != nil {
			return nil, NewRenderError(ErrCodeRenderFailed, "webp encode failed", err)
		}
	case FormatPNG, "":
		if err := png.Encode(buf, img); err != nil {
			return nil, NewRenderError(ErrCodeRenderFailed, "png encode failed", err)
		}
	default:
		return nil, NewRenderError(ErrCodeInvalidInput, fmt.Sprintf("unsupported image format %q", format), nil)
	}
	return buf.Bytes(), nil
}

// WrapText breaks s into lines of at most width runes, on word boundaries
// where possible. Explicit newlines are kept.
func WrapText(s string, width int) []string {
	if width <= 0 {
		width = 1
	}
	var out []string
	for _, para := range strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			out = append(out, "")
			continue
		}
		line := ""
		for _, word := range words {
			for utf8.RuneCountInString(word) > width {
				if line != "" {
					out = append(out, line)
					line = ""
				}
				r := []rune(word)
				out = append(out, string(r[:width]))
				word = string(r[width:])
			}
			switch {
			case line == "":
				line = word
			case utf8.RuneCountInString(line)+1+utf8.RuneCountInString(word) <= width:
				line += " " + word
			default:
				out = append(out, line)
				line = word
			}
		}
		if line != "" {
			out = append(out, line)
		}
	}
	// Drop trailing blank lines.
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return out
}

func fill(dst *image.RGBA, r image.Rectangle, c color.Color) {
	draw.Draw(dst, r, image.NewUniform(c), image.Point{}, draw.Src)
}

func drawCircle(dst *image.RGBA, cx, cy, radius int, c color.Color) {
	r2 := radius * radius
	for y := -radius; y <= radius; y++ {
		for x := -radius; x <= radius; x++ {
			if x*x+y*y <= r2 {
				dst.Set(cx+x, cy+y, c)
			}
		}
	}
}

func drawText(dst *image.RGBA, face font.Face, s string, x, y int, c color.Color) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

func drawCentered(dst *image.RGBA, face font.Face, s string, cx, y int, c color.Color) {
	w := font.MeasureString(face, s).Round()
	drawText(dst, face, s, cx-w/2, y, c)
}
