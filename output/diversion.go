// Package output implements gm4's diversion/output engine (spec.md §3
// "Diversion", §4.8): numbered output streams that buffer in memory and
// spill to a temp file once the aggregate buffered size crosses a
// threshold, merged back into stdout (diversion 0) at "undivert all".
//
// Grounded on the teacher's vm/memory.go MemorySegment/Memory pattern — an
// ordered collection of named regions, each owning its own backing bytes —
// generalized from ARM's fixed four segments to m4's dynamically-created,
// number-keyed diversions with a free list and a memory-vs-tempfile
// storage policy vm/memory.go has no need for.
package output

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
)

// DefaultMemoryCap is the default aggregate in-memory byte budget across
// all buffered diversions before the engine starts spilling to disk
// (spec.md §3/§4.8 default 512 KiB).
const DefaultMemoryCap = 512 * 1024

// Sink is the pseudo-diversion number whose writes are discarded.
const Sink = -1

// Stdout is diversion 0: writes pass through immediately.
const Stdout = 0

// diversion is one numbered buffered output stream.
type diversion struct {
	number int
	mem    []byte
	file   *os.File
	writer *bufio.Writer
	used   int64
}

func (d *diversion) inMemory() bool { return d.file == nil }

// Engine manages all diversions plus the sink and stdout passthrough
// (spec.md §4.8).
type Engine struct {
	Stdout io.Writer

	current   int
	diversions map[int]*diversion
	order     []int // insertion order, for stable largest-diversion selection

	memoryCap   int64
	totalInMem  int64
	tempDir     string

	// SyncLines, when true, emits `#line` directives on file-position
	// transitions (spec.md §4.8 "Sync-line mode"). The CLI driver sets it
	// from -s regardless of where stdout leads.
	SyncLines   bool
	pendingFile string // input position as of the last SetPosition call
	pendingLine int
	curSyncFile string // input position the last emitted #line directive claimed
	curSyncLine int

	onFatal   func(error)
	onWarning func(error)
}

// New creates an output engine writing diversion 0 directly to stdout.
func New(stdout io.Writer) *Engine {
	return &Engine{
		Stdout:     stdout,
		diversions: make(map[int]*diversion),
		memoryCap:  DefaultMemoryCap,
		onFatal:    func(error) {},
		onWarning:  func(error) {},
	}
}

// SetMemoryCap overrides the default in-memory spill threshold.
func (e *Engine) SetMemoryCap(n int64) { e.memoryCap = n }

// SetTempDir overrides the directory spill files are created in.
func (e *Engine) SetTempDir(dir string) { e.tempDir = dir }

// OnFatal/OnWarning register callbacks for the failure model in spec.md
// §4.8/§7: stdout write errors are always fatal; spill-file close errors
// are fatal only when the current diversion is stdout, else a warning.
func (e *Engine) OnFatal(f func(error))   { e.onFatal = f }
func (e *Engine) OnWarning(f func(error)) { e.onWarning = f }

// Current returns the currently selected diversion number.
func (e *Engine) Current() int { return e.current }

// SetPosition records the engine's current input position, so the next
// WriteBytes call can tell whether output's line count has drifted from
// the input's (spec.md §4.8 "Sync-line mode") and needs a `#line`
// directive to resynchronize. The driver/expansion engine calls this
// whenever it advances to a new input line.
func (e *Engine) SetPosition(file string, line int) {
	e.pendingFile = file
	e.pendingLine = line
}

// withSyncLines prepends a `#line N` or `#line N "FILE"` directive to b
// when the recorded input position has drifted from what the last
// directive claimed, and advances the tracked line by b's newline count
// (spec.md §4.8, §8 "Sync-lines idempotence").
func (e *Engine) withSyncLines(b []byte) []byte {
	if e.pendingFile == "" {
		return b
	}
	if e.pendingFile == e.curSyncFile && e.pendingLine == e.curSyncLine {
		e.curSyncLine += bytes.Count(b, []byte{'\n'})
		return b
	}
	var buf bytes.Buffer
	if e.pendingFile == e.curSyncFile {
		fmt.Fprintf(&buf, "#line %d\n", e.pendingLine)
	} else {
		fmt.Fprintf(&buf, "#line %d %q\n", e.pendingLine, e.pendingFile)
	}
	buf.Write(b)
	e.curSyncFile = e.pendingFile
	e.curSyncLine = e.pendingLine + bytes.Count(b, []byte{'\n'})
	return buf.Bytes()
}

// Select switches the current diversion (spec.md §4.8 select_diversion).
func (e *Engine) Select(n int) {
	e.current = n
}

func (e *Engine) getOrCreate(n int) *diversion {
	d, ok := e.diversions[n]
	if !ok {
		d = &diversion{number: n}
		e.diversions[n] = d
		e.order = append(e.order, n)
	}
	return d
}

// WriteBytes writes bytes to the current diversion (spec.md §4.8
// output_bytes). Writes to the sink are discarded; writes to stdout pass
// through immediately; writes to a positive diversion buffer in memory
// until the aggregate cap triggers a spill.
func (e *Engine) WriteBytes(b []byte) {
	switch {
	case e.current == Sink || e.current < 0:
		return
	case e.current == Stdout:
		if e.SyncLines {
			b = e.withSyncLines(b)
		}
		if _, err := e.Stdout.Write(b); err != nil {
			e.onFatal(fmt.Errorf("write error on stdout: %w", err))
		}
		return
	default:
		if e.SyncLines {
			b = e.withSyncLines(b)
		}
		e.writeToDiversion(e.getOrCreate(e.current), b)
	}
}

// WriteString is a convenience wrapper over WriteBytes.
func (e *Engine) WriteString(s string) { e.WriteBytes([]byte(s)) }

func (e *Engine) writeToDiversion(d *diversion, b []byte) {
	d.used += int64(len(b))
	if !d.inMemory() {
		if _, err := d.writer.Write(b); err != nil {
			e.onWarning(fmt.Errorf("write error on diversion %d: %w", d.number, err))
		}
		return
	}
	d.mem = append(d.mem, b...)
	e.totalInMem += int64(len(b))
	if e.totalInMem > e.memoryCap {
		e.spillLargest()
	}
}

// spillLargest picks the largest currently-in-memory diversion and moves
// it to a temp file (spec.md §4.8 "Spill policy").
func (e *Engine) spillLargest() {
	var largest *diversion
	for _, n := range e.order {
		d := e.diversions[n]
		if !d.inMemory() || len(d.mem) == 0 {
			continue
		}
		if largest == nil || len(d.mem) > len(largest.mem) {
			largest = d
		}
	}
	if largest == nil {
		return
	}
	f, err := os.CreateTemp(e.tempDir, fmt.Sprintf("gm4-divert%d-*.tmp", largest.number))
	if err != nil {
		e.onWarning(fmt.Errorf("could not create spill file for diversion %d: %w", largest.number, err))
		return
	}
	if _, err := f.Write(largest.mem); err != nil {
		e.onWarning(fmt.Errorf("could not spill diversion %d to disk: %w", largest.number, err))
		_ = f.Close()
		return
	}
	e.totalInMem -= int64(len(largest.mem))
	largest.mem = nil
	largest.file = f
	largest.writer = bufio.NewWriter(f)
}

// Insert appends diversion n's contents into the current diversion and
// recycles n (spec.md §4.8 insert_diversion). A no-op if n <= 0 or n is
// already the current diversion.
func (e *Engine) Insert(n int) {
	if n <= 0 || n == e.current {
		return
	}
	d, ok := e.diversions[n]
	if !ok || d.used == 0 {
		e.free(n)
		return
	}
	content, err := e.drain(d)
	if err != nil {
		e.onWarning(fmt.Errorf("could not read back diversion %d: %w", n, err))
		e.free(n)
		return
	}
	e.WriteBytes(content)
	e.free(n)
}

// drain flushes and reads back a diversion's full contents, closing any
// spill file.
func (e *Engine) drain(d *diversion) ([]byte, error) {
	if d.inMemory() {
		return d.mem, nil
	}
	if err := d.writer.Flush(); err != nil {
		return nil, err
	}
	if _, err := d.file.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	content, err := io.ReadAll(d.file)
	closeErr := d.file.Close()
	if closeErr != nil {
		if e.current == Stdout {
			e.onFatal(fmt.Errorf("could not close spill file for diversion %d: %w", d.number, closeErr))
		} else {
			e.onWarning(fmt.Errorf("could not close spill file for diversion %d: %w", d.number, closeErr))
		}
	}
	name := d.file.Name()
	_ = os.Remove(name)
	return content, err
}

func (e *Engine) free(n int) {
	if d, ok := e.diversions[n]; ok {
		if !d.inMemory() {
			e.totalInMem -= 0
		} else {
			e.totalInMem -= int64(len(d.mem))
		}
	}
	delete(e.diversions, n)
	for i, v := range e.order {
		if v == n {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
}

// UndivertAll inserts every positive diversion into stdout in ascending
// numerical order, then empties the table (spec.md §4.8 undivert_all,
// §8 "Idempotence of divert(0) undivert").
func (e *Engine) UndivertAll() {
	nums := e.positiveNumbers()
	saved := e.current
	e.current = Stdout
	for _, n := range nums {
		e.Insert(n)
	}
	e.current = saved
}

// Undivert inserts the named diversions (or all positive diversions, if
// none named) into the current diversion, implementing the `undivert`
// builtin (distinct from UndivertAll, which always targets stdout and is
// only called once at program exit).
func (e *Engine) Undivert(nums ...int) {
	if len(nums) == 0 {
		nums = e.positiveNumbers()
	}
	for _, n := range nums {
		e.Insert(n)
	}
}

func (e *Engine) positiveNumbers() []int {
	var nums []int
	for n := range e.diversions {
		if n > 0 {
			nums = append(nums, n)
		}
	}
	sort.Ints(nums)
	return nums
}

// Used returns the byte count buffered in diversion n (0 if it does not
// exist), for `divnum`-adjacent introspection and the debugger's
// `info diversions`.
func (e *Engine) Used(n int) int64 {
	if d, ok := e.diversions[n]; ok {
		return d.used
	}
	return 0
}

// ActiveDiversions reports every positive diversion number that has been
// written to (possibly with zero bytes) and not yet inserted, ascending,
// for `info diversions`.
func (e *Engine) ActiveDiversions() []int {
	return e.positiveNumbers()
}

// InMemory reports whether diversion n is still buffered in memory rather
// than spilled to a temp file.
func (e *Engine) InMemory(n int) bool {
	d, ok := e.diversions[n]
	if !ok {
		return true
	}
	return d.inMemory()
}
