package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"image"
	"image/jpeg"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	_ "image/gif" // Register GIF decoder
	_ "image/png" // Register PNG decoder

	"foodgram/internal/config"
	"foodgram/internal/models"

	"github.com/chai2010/webp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

const (
	DefaultMediaRoot            = "./media"
	DefaultMediaURL             = "/media/"
	DefaultImageMaxUploadSizeMB = 10
	MasterMaxSize               = 2048
	// MaxSourcePixels bounds the decoded bitmap; headers are checked before decoding.
	MaxSourcePixels = 40_000_000
	JPEGQuality                 = 82
	WebPQuality                 = 70
)

// Image kinds map to subdirectories of the media root.
const (
	ImageKindRecipe = "recipes"
	ImageKindAvatar = "avatars"
)

// ImageUpload is a raw uploaded file.
type ImageUpload struct {
	Filename    string
	ContentType string
	Content     []byte
}

// ImageStorer persists uploaded images and returns their public URL.
type ImageStorer interface {
	Store(ctx context.Context, kind string, upload ImageUpload) (string, error)
	StoreDataURI(ctx context.Context, kind, dataURI string) (string, error)
	Remove(publicURL string)
}

// ImageService normalizes images and writes them under the media root.
type ImageService struct {
	mediaRoot          string
	mediaURL           string
	maxUploadSizeBytes int64
}

func NewImageService(cfg *config.Config) *ImageService {
	mediaRoot := DefaultMediaRoot
	mediaURL := DefaultMediaURL
	maxUploadSizeMB := DefaultImageMaxUploadSizeMB

	if cfg != nil {
		if cfg.MediaRoot != "" {
			mediaRoot = cfg.MediaRoot
		}
		if cfg.MediaURL != "" {
			mediaURL = cfg.MediaURL
		}
		if cfg.ImageMaxUploadSizeMB > 0 {
			maxUploadSizeMB = cfg.ImageMaxUploadSizeMB
		}
	}
	if !strings.HasSuffix(mediaURL, "/") {
		mediaURL += "/"
	}

	return &ImageService{
		mediaRoot:          mediaRoot,
		mediaURL:           mediaURL,
		maxUploadSizeBytes: int64(maxUploadSizeMB) * 1024 * 1024,
	}
}

// StoreDataURI accepts "data:image/<type>;base64,<payload>".
func (s *ImageService) StoreDataURI(ctx context.Context, kind, dataURI string) (string, error) {
	contentType, content, err := decodeDataURI(dataURI)
	if err != nil {
		return "", models.NewFieldValidationError(map[string]string{fieldForKind(kind): err.Error()})
	}
	return s.Store(ctx, kind, ImageUpload{ContentType: contentType, Content: content})
}

// Store validates the upload, bounds it to MasterMaxSize and writes a JPEG
// master plus a WebP sibling named after the content hash.
func (s *ImageService) Store(_ context.Context, kind string, in ImageUpload) (string, error) {
	field := fieldForKind(kind)
	invalid := func(msg string) error {
		return models.NewFieldValidationError(map[string]string{field: msg})
	}

	if len(in.Content) == 0 {
		return "", invalid("No file uploaded")
	}
	if int64(len(in.Content)) > s.maxUploadSizeBytes {
		return "", invalid(fmt.Sprintf("File too large (max %dMB)", s.maxUploadSizeBytes/(1024*1024)))
	}

	detectedType := http.DetectContentType(in.Content)
	if !isAllowedImageMIME(detectedType) {
		return "", invalid("Invalid image type")
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(in.Content))
	if err != nil {
		return "", invalid("Invalid image file")
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > MaxSourcePixels {
		return "", invalid("Image too large")
	}

	decoded, format, err := image.Decode(bytes.NewReader(in.Content))
	if err != nil {
		return "", invalid("Invalid image file")
	}
	if !isSupportedDecodedFormat(format) {
		return "", invalid("Unsupported image format")
	}
	if provided := normalizeContentType(in.ContentType); strings.HasPrefix(provided, "image/") && !isMatchingContentType(provided, decodedFormatToMime(format)) {
		return "", invalid("Image content type mismatch")
	}

	master := resizeToFit(decoded, MasterMaxSize, MasterMaxSize)

	encodedJPG, err := encodeJPEG(master, JPEGQuality)
	if err != nil {
		return "", models.NewInternalError(err)
	}
	encodedWebP, err := encodeWebP(master, WebPQuality)
	if err != nil {
		return "", models.NewInternalError(err)
	}

	hash := contentHash(encodedJPG)
	jpgRel := path.Join(kind, hash+".jpg")
	webpRel := path.Join(kind, hash+".webp")

	if err := writeBytesToFile(filepath.Join(s.mediaRoot, filepath.FromSlash(jpgRel)), encodedJPG); err != nil {
		return "", models.NewInternalError(err)
	}
	if err := writeBytesToFile(filepath.Join(s.mediaRoot, filepath.FromSlash(webpRel)), encodedWebP); err != nil {
		cleanupImageFiles([]string{filepath.Join(s.mediaRoot, filepath.FromSlash(jpgRel))})
		return "", models.NewInternalError(err)
	}

	return s.mediaURL + jpgRel, nil
}

// Remove deletes a previously stored image and its WebP sibling. URLs outside
// the media prefix are ignored.
func (s *ImageService) Remove(publicURL string) {
	rel, ok := strings.CutPrefix(publicURL, s.mediaURL)
	if !ok || rel == "" || strings.Contains(rel, "..") {
		return
	}
	jpgAbs := filepath.Join(s.mediaRoot, filepath.FromSlash(rel))
	cleanupImageFiles([]string{jpgAbs, strings.TrimSuffix(jpgAbs, ".jpg") + ".webp"})
}

func fieldForKind(kind string) string {
	if kind == ImageKindAvatar {
		return "avatar"
	}
	return "image"
}

func decodeDataURI(dataURI string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(dataURI), "data:")
	if !ok {
		return "", nil, fmt.Errorf("image must be a base64 data URI")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, fmt.Errorf("image must be a base64 data URI")
	}
	contentType, encoding, _ := strings.Cut(meta, ";")
	if encoding != "base64" {
		return "", nil, fmt.Errorf("image data URI must be base64 encoded")
	}
	content, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("image data URI is not valid base64")
	}
	return contentType, content, nil
}

func resizeToFit(src image.Image, maxWidth, maxHeight int) image.Image {
	bounds := src.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()
	if w <= 0 || h <= 0 {
		return src
	}
	if w <= maxWidth && h <= maxHeight {
		return src
	}

	scaleW := float64(maxWidth) / float64(w)
	scaleH := float64(maxHeight) / float64(h)
	scale := scaleW
	if scaleH < scale {
		scale = scaleH
	}
	newW := int(float64(w) * scale)
	newH := int(float64(h) * scale)
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeWebP(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := webp.Encode(buf, img, &webp.Options{Quality: float32(quality)}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func isAllowedImageMIME(contentType string) bool {
	switch normalizeContentType(contentType) {
	case "image/jpeg", "image/jpg", "image/png", "image/gif", "image/webp":
		return true
	default:
		return false
	}
}

func normalizeContentType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}

func isMatchingContentType(provided, detected string) bool {
	p := normalizeContentType(provided)
	d := normalizeContentType(detected)
	if p == d {
		return true
	}
	return (p == "image/jpg" && d == "image/jpeg") || (p == "image/jpeg" && d == "image/jpg")
}

func isSupportedDecodedFormat(format string) bool {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "jpeg", "jpg", "png", "gif", "webp":
		return true
	default:
		return false
	}
}

func decodedFormatToMime(format string) string {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "jpeg", "jpg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	default:
		return ""
	}
}

func contentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

func writeBytesToFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func cleanupImageFiles(paths []string) {
	for _, p := range paths {
		_ = os.Remove(p)
	}
}
