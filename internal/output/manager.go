package output

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tern-dl/tern/internal/utils"
)

const maxStreamLines = 10

type jobLine struct {
	ID          int
	Name        string
	Status      string
	Message     string
	StreamLines []string
	Err         error
	Complete    bool
	StartTime   time.Time
	LastUpdated time.Time
}

// Manager renders live per-job status lines to the terminal and collects a
// session summary. All mutation goes through the mutex; the display
// goroutine only reads.
type Manager struct {
	mu        sync.RWMutex
	jobs      map[int]*jobLine
	nextID    int
	numLines  int
	doneCh    chan struct{}
	displayWg sync.WaitGroup
	tick      time.Duration
	quiet     bool
}

func NewManager() *Manager {
	return &Manager{
		jobs:   make(map[int]*jobLine),
		doneCh: make(chan struct{}),
		tick:   300 * time.Millisecond,
	}
}

// SetQuiet suppresses the live redraw loop; the summary still prints.
func (m *Manager) SetQuiet() {
	m.quiet = true
}

func (m *Manager) Register(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.jobs[m.nextID] = &jobLine{
		ID:          m.nextID,
		Name:        name,
		Status:      "pending",
		StartTime:   time.Now(),
		LastUpdated: time.Now(),
	}
	return m.nextID
}

func (m *Manager) SetStatus(id int, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.jobs[id]; ok {
		j.Status = status
		j.LastUpdated = time.Now()
	}
}

func (m *Manager) SetMessage(id int, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.jobs[id]; ok {
		j.Message = message
		j.LastUpdated = time.Now()
	}
}

// SetProgress replaces the job's stream area with a single progress bar
// line.
func (m *Manager) SetProgress(id int, current, total int64, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.jobs[id]; ok {
		elapsed := time.Since(j.StartTime).Seconds()
		line := fmt.Sprintf("%s %s %s %s", ProgressBar(current, total, 30),
			dimStyle.Render(text), symbols["bullet"], dimStyle.Render(utils.FormatSpeed(current, elapsed)))
		j.StreamLines = []string{line}
		j.LastUpdated = time.Now()
	}
}

func (m *Manager) AddStreamLine(id int, line string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.jobs[id]; ok {
		j.StreamLines = append(j.StreamLines, wrapText(line, 6)...)
		if len(j.StreamLines) > maxStreamLines {
			j.StreamLines = j.StreamLines[len(j.StreamLines)-maxStreamLines:]
		}
		j.LastUpdated = time.Now()
	}
}

func (m *Manager) Complete(id int, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.jobs[id]; ok {
		j.StreamLines = nil
		if message == "" {
			message = fmt.Sprintf("Completed %s", j.Name)
		}
		j.Message = message
		j.Complete = true
		j.Status = "success"
		j.LastUpdated = time.Now()
	}
}

func (m *Manager) Fail(id int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.jobs[id]; ok {
		j.StreamLines = nil
		j.Complete = true
		j.Status = "error"
		j.Err = err
		j.Message = fmt.Sprintf("Failed %s", j.Name)
		j.LastUpdated = time.Now()
	}
}

func (m *Manager) sorted() []*jobLine {
	all := make([]*jobLine, 0, len(m.jobs))
	for _, j := range m.jobs {
		all = append(all, j)
	}
	sort.Slice(all, func(i, k int) bool { return all[i].ID < all[k].ID })
	return all
}

func (m *Manager) redraw() {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, termHeight := terminalSize()
	availableLines := termHeight - 3

	if m.numLines > 0 {
		fmt.Printf("\033[%dA\033[J", m.numLines)
	}

	lineCount := 0
	for _, j := range m.sorted() {
		if lineCount >= availableLines {
			break
		}
		elapsed := time.Since(j.StartTime).Round(time.Second)
		if j.Complete {
			elapsed = j.LastUpdated.Sub(j.StartTime).Round(time.Second)
		}
		message := j.Message
		if message == "" {
			message = "Waiting..."
		}
		fmt.Printf("  %s %s %s\n", statusIndicator(j.Status),
			dimStyle.Render(elapsed.String()), styleForStatus(j.Status).Render(message))
		lineCount++
		for _, line := range j.StreamLines {
			if lineCount >= availableLines {
				break
			}
			fmt.Printf("      %s\n", streamStyle.Render(line))
			lineCount++
		}
	}
	m.numLines = lineCount
}

func (m *Manager) StartDisplay() {
	if m.quiet {
		return
	}
	m.displayWg.Add(1)
	go func() {
		defer m.displayWg.Done()
		ticker := time.NewTicker(m.tick)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.redraw()
			case <-m.doneCh:
				m.redraw()
				return
			}
		}
	}()
}

func (m *Manager) StopDisplay() {
	close(m.doneCh)
	m.displayWg.Wait()
	m.ShowSummary()
}

// Counts returns how many registered jobs succeeded and failed so far.
func (m *Manager) Counts() (success, failures int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, j := range m.jobs {
		switch j.Status {
		case "success":
			success++
		case "error":
			failures++
		}
	}
	return success, failures
}

func (m *Manager) ShowSummary() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fmt.Println()
	var success, failures int
	for _, j := range m.jobs {
		switch j.Status {
		case "success":
			success++
		case "error":
			failures++
		}
	}
	fmt.Println("  " + successStyle.Render(fmt.Sprintf("Completed %d of %d", success, len(m.jobs))))
	if failures > 0 {
		fmt.Println("  " + errorStyle.Render(fmt.Sprintf("Failed %d of %d", failures, len(m.jobs))))
		fmt.Println()
		fmt.Println("  " + errorStyle.Bold(true).Render("Errors:"))
		i := 0
		for _, j := range m.sorted() {
			if j.Err == nil {
				continue
			}
			i++
			fmt.Printf("    %s %s\n", errorStyle.Render(fmt.Sprintf("%d.", i)), errorStyle.Render(j.Name))
			fmt.Printf("      %s\n", errorStyle.Render(fmt.Sprintf("Error: %v", j.Err)))
		}
	}
	fmt.Println()
}
