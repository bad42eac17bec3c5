package extract

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/ledongthuc/pdf"

	dexerrors "github.com/Aman-CERP/pagedex/internal/errors"
	"github.com/Aman-CERP/pagedex/internal/invoker"
)

// PageCounter reports how many pages a document has.
type PageCounter interface {
	CountPages(ctx context.Context, path string) (int, error)
}

// PageTexter extracts the text of one page (1-based).
type PageTexter interface {
	PageText(ctx context.Context, path string, page int) (string, error)
}

var pagesPattern = regexp.MustCompile(`(?i)Pages:\s+(\d+)`)

// ToolCounter asks pdfinfo (or a compatible tool) for the page count.
type ToolCounter struct {
	Invoker invoker.Invoker
	Tool    string
	Timeout time.Duration
}

// CountPages implements PageCounter.
func (c *ToolCounter) CountPages(ctx context.Context, path string) (int, error) {
	stdout, _, err := c.Invoker.Invoke(ctx, c.Tool, []string{path}, c.Timeout)
	if err != nil {
		return 0, err
	}
	return ParsePageCount(string(stdout))
}

// ParsePageCount extracts N from a "Pages: N" line. Absent or < 1 is an
// ERR_401 with reason "pages=0".
func ParsePageCount(info string) (int, error) {
	m := pagesPattern.FindStringSubmatch(info)
	if m == nil {
		return 0, dexerrors.New(dexerrors.ErrCodePageCount, "pages=0", nil)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 1 {
		return 0, dexerrors.New(dexerrors.ErrCodePageCount, "pages=0", err).WithDetail("pages", m[1])
	}
	return n, nil
}

// ToolTexter runs pdftotext on a single page and returns its stdout.
type ToolTexter struct {
	Invoker invoker.Invoker
	Tool    string
	Timeout time.Duration
}

// PageTextArgs returns the pdftotext arguments for one page.
func PageTextArgs(path string, page int) []string {
	p := strconv.Itoa(page)
	return []string{"-enc", "UTF-8", "-layout", "-nopgbrk", "-f", p, "-l", p, path, "-"}
}

// PageText implements PageTexter.
func (t *ToolTexter) PageText(ctx context.Context, path string, page int) (string, error) {
	stdout, _, err := t.Invoker.Invoke(ctx, t.Tool, PageTextArgs(path, page), t.Timeout)
	if err != nil {
		return "", err
	}
	return string(stdout), nil
}

// NativeCounter reads the page tree in-process instead of spawning pdfinfo.
type NativeCounter struct{}

// CountPages implements PageCounter.
func (NativeCounter) CountPages(ctx context.Context, path string) (n int, err error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	file, err := os.Open(path)
	if err != nil {
		return 0, dexerrors.New(dexerrors.ErrCodePageCount, fmt.Sprintf("open: %v", err), err)
	}
	defer func() { _ = file.Close() }()

	info, err := file.Stat()
	if err != nil {
		return 0, dexerrors.New(dexerrors.ErrCodePageCount, fmt.Sprintf("stat: %v", err), err)
	}

	// The reader panics on some malformed trailers.
	defer func() {
		if r := recover(); r != nil {
			n, err = 0, dexerrors.New(dexerrors.ErrCodePageCount, fmt.Sprintf("malformed document: %v", r), nil)
		}
	}()

	reader, err := pdf.NewReader(file, info.Size())
	if err != nil {
		return 0, dexerrors.New(dexerrors.ErrCodePageCount, err.Error(), err)
	}
	n = reader.NumPage()
	if n < 1 {
		return 0, dexerrors.New(dexerrors.ErrCodePageCount, "pages=0", nil)
	}
	return n, nil
}
