package upload

import (
	"io"
	"sync"
)

// ProgressFunc receives the running byte count of the request body and its
// total length.
type ProgressFunc func(sent, total int64)

// progressReader reports body reads to fn. The transport may read from its
// own goroutine, so reports are serialized and stop once the upload settles.
type progressReader struct {
	r     io.Reader
	total int64
	fn    ProgressFunc

	mu      sync.Mutex
	sent    int64
	settled bool
}

func newProgressReader(r io.Reader, total int64, fn ProgressFunc) *progressReader {
	return &progressReader{r: r, total: total, fn: fn}
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.report(int64(n))
	}
	return n, err
}

func (p *progressReader) report(n int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.sent += n
	if p.settled || p.fn == nil {
		return
	}
	p.fn(p.sent, p.total)
}

// settle blocks until any running callback returns and suppresses the rest.
func (p *progressReader) settle() {
	p.mu.Lock()
	p.settled = true
	p.mu.Unlock()
}

func (p *progressReader) Sent() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sent
}
