package waveform

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/tebeka/atexit"

	"github.com/sarchlab/stimulus/model"
	"github.com/sarchlab/stimulus/timing"
)

// VCDWriter records samples in the Value Change Dump text format with a
// 1 ns timescale.
type VCDWriter struct {
	w      *bufio.Writer
	closer io.Closer

	scope   string
	sampler *sampler
	ids     []string
	guard   timeGuard
}

// NewVCDWriter creates a writer that writes to w. If w is also an io.Closer
// it is closed by Close.
func NewVCDWriter(w io.Writer, m model.Model) *VCDWriter {
	vw := &VCDWriter{
		w:       bufio.NewWriter(w),
		scope:   "top",
		sampler: newSampler(m),
	}

	if c, ok := w.(io.Closer); ok {
		vw.closer = c
	}

	vw.ids = make([]string, len(vw.sampler.pins))
	for i := range vw.ids {
		vw.ids[i] = vcdIdentifier(i)
	}

	return vw
}

// CreateVCDFile creates (or truncates) a VCD file. The file is flushed and
// closed when the program exits through atexit.
func CreateVCDFile(path string, m model.Model) (*VCDWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("waveform: create %s: %w", path, err)
	}

	w := NewVCDWriter(f, m)

	atexit.Register(func() {
		_ = w.Close()
	})

	return w, nil
}

// WithScope sets the name of the module scope that contains the pins.
func (w *VCDWriter) WithScope(name string) *VCDWriter {
	w.scope = name
	return w
}

// RecordSample writes the changed pins at time t.
func (w *VCDWriter) RecordSample(t timing.VTimeInNs) error {
	prev := w.guard.last

	first, err := w.guard.admit(t)
	if err != nil {
		return err
	}

	if first {
		return w.writeFirstSample(t)
	}

	if t != prev {
		fmt.Fprintf(w.w, "#%d\n", t)
	}

	for _, c := range w.sampler.sample() {
		w.writeValue(c)
	}

	return nil
}

func (w *VCDWriter) writeFirstSample(t timing.VTimeInNs) error {
	w.writeHeader()

	fmt.Fprintf(w.w, "#%d\n$dumpvars\n", t)
	for _, c := range w.sampler.sample() {
		w.writeValue(c)
	}
	fmt.Fprint(w.w, "$end\n")

	return nil
}

func (w *VCDWriter) writeHeader() {
	fmt.Fprint(w.w, "$timescale 1ns $end\n")
	fmt.Fprintf(w.w, "$scope module %s $end\n", w.scope)

	for i, p := range w.sampler.pins {
		fmt.Fprintf(w.w, "$var wire %d %s %s $end\n", p.Width, w.ids[i], p.Name)
	}

	fmt.Fprint(w.w, "$upscope $end\n$enddefinitions $end\n")
}

func (w *VCDWriter) writeValue(c change) {
	id := w.ids[c.index]

	if w.sampler.pins[c.index].Width == 1 {
		fmt.Fprintf(w.w, "%d%s\n", c.value, id)
		return
	}

	fmt.Fprintf(w.w, "b%s %s\n", strconv.FormatUint(c.value, 2), id)
}

// Flush writes the buffered text to the underlying writer.
func (w *VCDWriter) Flush() error {
	if w.guard.closed {
		return ErrRecorderClosed
	}

	return w.w.Flush()
}

// Close flushes the writer and closes the underlying file. Closing twice is
// a no-op.
func (w *VCDWriter) Close() error {
	if w.guard.closed {
		return nil
	}

	err := w.w.Flush()
	w.guard.closed = true

	if w.closer != nil {
		if cerr := w.closer.Close(); err == nil {
			err = cerr
		}
	}

	return err
}

// vcdIdentifier returns the short identifier code of the i-th variable,
// using the printable characters from '!' to '~'.
func vcdIdentifier(i int) string {
	const first, count = '!', '~' - '!' + 1

	id := []byte{byte(first + i%count)}
	for i /= count; i > 0; i /= count {
		i--
		id = append(id, byte(first+i%count))
	}

	return string(id)
}

var _ Recorder = (*VCDWriter)(nil)
