package tradelog

import (
	"bufio"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

var (
	mu    sync.Mutex
	dir   = "logs"
	runID = uuid.NewString()
	loc   = time.FixedZone("IST", 19800)
)

// Entry is one accepted order or position close.
type Entry struct {
	Time       string  `json:"time"`
	RunID      string  `json:"run_id"`
	Symbol     string  `json:"symbol"`
	Action     string  `json:"action"`
	Side       string  `json:"side"`
	Volume     float64 `json:"volume"`
	Price      float64 `json:"price"`
	StopLoss   float64 `json:"stop_loss,omitempty"`
	TakeProfit float64 `json:"take_profit,omitempty"`
	Profit     float64 `json:"profit,omitempty"`
	OrderID    string  `json:"order_id"`
	ClientID   string  `json:"client_id,omitempty"`
	Reason     string  `json:"reason"`
}

// DecisionEntry is one guard verdict with the inputs that produced it.
type DecisionEntry struct {
	Time       string             `json:"time"`
	RunID      string             `json:"run_id"`
	Symbol     string             `json:"symbol"`
	Side       string             `json:"side"`
	Verdict    string             `json:"verdict"`
	Reason     string             `json:"reason,omitempty"`
	Trend      string             `json:"trend"`
	Strength   float64            `json:"strength"`
	Bid        float64            `json:"bid"`
	Ask        float64            `json:"ask"`
	Indicators map[string]float64 `json:"indicators,omitempty"`
}

// Configure sets the journal directory. An empty dir keeps the current one.
func Configure(logDir string) {
	mu.Lock()
	defer mu.Unlock()
	if logDir != "" {
		dir = logDir
	}
}

// RunID identifies this process in every journal line.
func RunID() string {
	return runID
}

// NewClientID returns a unique order reference.
func NewClientID() string {
	return uuid.NewString()
}

// Dir returns the journal directory.
func Dir() string {
	mu.Lock()
	defer mu.Unlock()
	return dir
}

// Now is the current time in the journal's day-boundary zone.
func Now() time.Time {
	return time.Now().In(loc)
}

// ReadTrades returns the entries journaled on t's date. A missing file
// yields no entries; undecodable lines are skipped.
func ReadTrades(t time.Time) ([]Entry, error) {
	mu.Lock()
	p := dailyFilepath(t.In(loc))
	mu.Unlock()

	f, err := os.Open(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []Entry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, sc.Err()
}

func dailyFilepath(t time.Time) string {
	return filepath.Join(dir, "trades", t.Format("2006-01-02")+".jsonl")
}

func decisionsFilepath(t time.Time) string {
	return filepath.Join(dir, "decisions", t.Format("2006-01-02")+".jsonl")
}

func Append(e Entry) error {
	mu.Lock()
	defer mu.Unlock()
	now := time.Now().In(loc)
	e.Time = now.Format(time.RFC3339)
	e.RunID = runID
	return appendLine(dailyFilepath(now), e)
}

func AppendDecision(e DecisionEntry) error {
	mu.Lock()
	defer mu.Unlock()
	now := time.Now().In(loc)
	e.Time = now.Format(time.RFC3339)
	e.RunID = runID
	return appendLine(decisionsFilepath(now), e)
}

func appendLine(p string, v any) error {
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode journal entry: %w", err)
	}
	_, err = fmt.Fprintln(f, string(b))
	return err
}

// CompressOlder gzips journal files untouched for retentionDays.
func CompressOlder(retentionDays int) error {
	if retentionDays <= 0 {
		return nil
	}
	mu.Lock()
	root := dir
	mu.Unlock()

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	return filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || filepath.Ext(p) != ".jsonl" {
			return nil
		}
		info, err := d.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			return nil
		}
		gz := p + ".gz"
		if _, err := os.Stat(gz); err == nil {
			_ = os.Remove(p)
			return nil
		}
		if err := gzipFile(p, gz); err != nil {
			return nil
		}
		_ = os.Remove(p)
		return nil
	})
}

func gzipFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	gw := gzip.NewWriter(out)
	if _, err := io.Copy(gw, in); err != nil {
		_ = gw.Close()
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	if err := gw.Close(); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
