// Package identity derives stable document identities that key annotation collections.
package identity

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"pdf-annotation-sync/internal/domain"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

const (
	// DigestPrefixLength is the number of hex characters of the SHA-256
	// digest kept as a local document's identity.
	DigestPrefixLength = 16

	// FallbackIdentity is used for remote locators without a trailing segment.
	FallbackIdentity = "remote_pdf"

	filler = "_"
)

var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9]`)

// Source is the input to Resolve: a LocalSource or a RemoteSource.
type Source interface {
	isSource()
}

// LocalSource is a locally supplied document whose bytes can be hashed.
type LocalSource struct {
	Reader io.Reader
}

// RemoteSource is a document addressed by a URL or path that is not hashed.
type RemoteSource struct {
	Locator string
}

func (LocalSource) isSource()  {}
func (RemoteSource) isSource() {}

// Resolve derives the identity for src.
func Resolve(src Source) (domain.DocumentIdentity, error) {
	switch s := src.(type) {
	case LocalSource:
		return FromReader(s.Reader)
	case RemoteSource:
		return FromLocator(s.Locator), nil
	default:
		return "", fmt.Errorf("unsupported identity source %T", src)
	}
}

// FromBytes hashes already-read document content.
func FromBytes(content []byte) domain.DocumentIdentity {
	sum := sha256.Sum256(content)
	return domain.DocumentIdentity(hex.EncodeToString(sum[:])[:DigestPrefixLength])
}

// FromReader hashes everything r yields. A read failure is reported as
// domain.ErrUnreadableContent and no identity is returned.
func FromReader(r io.Reader) (domain.DocumentIdentity, error) {
	if r == nil {
		return "", domain.ErrUnreadableContent
	}
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrUnreadableContent, err)
	}
	return domain.DocumentIdentity(hex.EncodeToString(h.Sum(nil))[:DigestPrefixLength]), nil
}

// FromLocator sanitizes the trailing path segment of a remote locator.
// Two locators sharing a final segment resolve to the same identity.
func FromLocator(locator string) domain.DocumentIdentity {
	segment := locator
	if i := strings.LastIndex(locator, "/"); i >= 0 {
		segment = locator[i+1:]
	}
	if segment == "" {
		return FallbackIdentity
	}
	return sanitize(segment)
}

// FromFileName sanitizes an explicitly supplied file name.
func FromFileName(name string) domain.DocumentIdentity {
	if name == "" {
		return FallbackIdentity
	}
	return sanitize(name)
}

func sanitize(s string) domain.DocumentIdentity {
	return domain.DocumentIdentity(nonAlphanumeric.ReplaceAllString(s, filler))
}

// Document is an opened local document.
type Document struct {
	Identity domain.DocumentIdentity
	Name     string
	Size     int64
	// PageCount is 0 when the content could not be parsed as a PDF.
	PageCount int
}

// OpenLocal reads the file at path, derives its identity and, when the
// content is a readable PDF, its page count.
func OpenLocal(path string) (*Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnreadableContent, err)
	}
	return &Document{
		Identity:  FromBytes(content),
		Name:      filepath.Base(path),
		Size:      int64(len(content)),
		PageCount: pageCount(content),
	}, nil
}

var disableConfigDir sync.Once

func pageCount(content []byte) int {
	// pdfcpu would otherwise create a config directory in the user's home.
	disableConfigDir.Do(api.DisableConfigDir)

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	n, err := api.PageCount(bytes.NewReader(content), conf)
	if err != nil {
		return 0
	}
	return n
}
