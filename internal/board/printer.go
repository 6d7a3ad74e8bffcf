package board

import (
	"bufio"
	"io"
	"os"
	"sync"
)

// Banner is printed before each cycle's lines
const Banner = "Data fetched successfully!"

// Printer writes the board to a line-oriented readout
type Printer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewPrinter creates a printer writing to w, or stdout when w is nil
func NewPrinter(w io.Writer) *Printer {
	if w == nil {
		w = os.Stdout
	}
	return &Printer{w: w}
}

// Print writes the banner followed by one line per entry
func (p *Printer) Print(entries []Entry) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	bw := bufio.NewWriter(p.w)
	if _, err := bw.WriteString(Banner + "\n"); err != nil {
		return err
	}
	for _, e := range entries {
		if _, err := bw.WriteString(e.Line() + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}
