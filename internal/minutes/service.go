// Package minutes archives retrospective minutes as markdown files in
// a per-series git repository, one commit per completed board.
package minutes

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// CommitInfo describes one archived minutes commit.
type CommitInfo struct {
	Hash      string    `json:"hash"`
	Message   string    `json:"message"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"created_at"`
}

// BoardSummary is the material rendered into a minutes file.
type BoardSummary struct {
	BoardName  string
	Date       time.Time
	Columns    []ColumnSummary
	Agreements []AgreementSummary
}

type ColumnSummary struct {
	Title string
	Cards []CardSummary
}

type CardSummary struct {
	Content string
	Author  string
	Votes   int
}

type AgreementSummary struct {
	Content   string
	Author    string
	Completed bool
}

type Service struct {
	baseDir string
	lockMu  sync.Mutex
	locks   map[string]*sync.Mutex
}

func New(baseDir string) *Service {
	return &Service{
		baseDir: baseDir,
		locks:   make(map[string]*sync.Mutex),
	}
}

// EnsureSeriesRepo initializes the series' minutes repository with a
// README on the main branch. Calling it again is a no-op.
func (s *Service) EnsureSeriesRepo(seriesID, seriesName string) error {
	lock := s.seriesLock(seriesID)
	lock.Lock()
	defer lock.Unlock()

	path := s.repoPath(seriesID)
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat repo path: %w", err)
	}

	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create repo dir: %w", err)
	}

	repo, err := git.PlainInit(path, false)
	if err != nil {
		return fmt.Errorf("init repo: %w", err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("open worktree: %w", err)
	}
	readme := fmt.Sprintf("# %s\n\nRetrospective minutes archive.\n", seriesName)
	if err := os.WriteFile(filepath.Join(path, "README.md"), []byte(readme), 0o644); err != nil {
		return fmt.Errorf("write readme: %w", err)
	}
	if _, err := worktree.Add("README.md"); err != nil {
		return fmt.Errorf("git add readme: %w", err)
	}
	hash, err := worktree.Commit("Initialize minutes archive", &git.CommitOptions{
		Author: signature("TeamBeat"),
	})
	if err != nil {
		return fmt.Errorf("commit readme: %w", err)
	}
	if err := repo.Storer.SetReference(plumbing.NewHashReference(plumbing.NewBranchReferenceName("main"), hash)); err != nil {
		return fmt.Errorf("set main branch ref: %w", err)
	}
	if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName("main"))); err != nil {
		return fmt.Errorf("set HEAD to main: %w", err)
	}
	return nil
}

// CommitBoardMinutes renders the summary to markdown and commits it to
// the series archive.
func (s *Service) CommitBoardMinutes(seriesID string, summary BoardSummary, author string) (CommitInfo, error) {
	lock := s.seriesLock(seriesID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(seriesID))
	if err != nil {
		return CommitInfo{}, fmt.Errorf("open repo: %w", err)
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return CommitInfo{}, fmt.Errorf("open worktree: %w", err)
	}

	filename := minutesFilename(summary)
	markdown := RenderMarkdown(summary)
	repoRoot := worktree.Filesystem.Root()
	if err := os.WriteFile(filepath.Join(repoRoot, filename), []byte(markdown), 0o644); err != nil {
		return CommitInfo{}, fmt.Errorf("write minutes: %w", err)
	}
	if _, err := worktree.Add(filename); err != nil {
		return CommitInfo{}, fmt.Errorf("git add minutes: %w", err)
	}

	message := fmt.Sprintf("Minutes: %s (%s)", summary.BoardName, summary.Date.Format("2006-01-02"))
	hash, err := worktree.Commit(message, &git.CommitOptions{
		Author: signature(author),
	})
	if err != nil {
		return CommitInfo{}, fmt.Errorf("commit minutes: %w", err)
	}

	commitObj, err := repo.CommitObject(hash)
	if err != nil {
		return CommitInfo{}, fmt.Errorf("read commit object: %w", err)
	}
	return toCommitInfo(commitObj), nil
}

// History lists archive commits, newest first.
func (s *Service) History(seriesID string, limit int) ([]CommitInfo, error) {
	lock := s.seriesLock(seriesID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(seriesID))
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}

	ref, err := repo.Reference(plumbing.NewBranchReferenceName("main"), true)
	if err != nil {
		return nil, fmt.Errorf("resolve main: %w", err)
	}

	iter, err := repo.Log(&git.LogOptions{From: ref.Hash()})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	items := make([]CommitInfo, 0, limit)
	err = iter.ForEach(func(commitObj *object.Commit) error {
		items = append(items, toCommitInfo(commitObj))
		if limit > 0 && len(items) >= limit {
			return errStopIteration
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStopIteration) {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return items, nil
}

var errStopIteration = errors.New("stop iteration")

// RenderMarkdown formats a board summary as a minutes document.
func RenderMarkdown(summary BoardSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", summary.BoardName)
	fmt.Fprintf(&b, "Date: %s\n", summary.Date.Format("2006-01-02"))

	for _, column := range summary.Columns {
		fmt.Fprintf(&b, "\n## %s\n\n", column.Title)
		if len(column.Cards) == 0 {
			b.WriteString("_No cards._\n")
			continue
		}
		for _, card := range column.Cards {
			if card.Votes > 0 {
				fmt.Fprintf(&b, "- %s (%s, %d votes)\n", card.Content, card.Author, card.Votes)
			} else {
				fmt.Fprintf(&b, "- %s (%s)\n", card.Content, card.Author)
			}
		}
	}

	if len(summary.Agreements) > 0 {
		b.WriteString("\n## Agreements\n\n")
		for _, agreement := range summary.Agreements {
			mark := " "
			if agreement.Completed {
				mark = "x"
			}
			fmt.Fprintf(&b, "- [%s] %s (%s)\n", mark, agreement.Content, agreement.Author)
		}
	}
	return b.String()
}

func minutesFilename(summary BoardSummary) string {
	name := make([]rune, 0, len(summary.BoardName))
	for _, r := range strings.ToLower(summary.BoardName) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			name = append(name, r)
		case r == ' ' || r == '-' || r == '_':
			name = append(name, '-')
		}
	}
	if len(name) == 0 {
		name = []rune("board")
	}
	return fmt.Sprintf("%s-%s.md", summary.Date.Format("2006-01-02"), string(name))
}

func (s *Service) repoPath(seriesID string) string {
	return filepath.Join(s.baseDir, seriesID)
}

func (s *Service) seriesLock(seriesID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.locks[seriesID]
	if ok {
		return lock
	}
	lock = &sync.Mutex{}
	s.locks[seriesID] = lock
	return lock
}

func signature(author string) *object.Signature {
	return &object.Signature{
		Name:  author,
		Email: fmt.Sprintf("%s@local.teambeat.dev", sanitizeEmail(author)),
		When:  time.Now(),
	}
}

func toCommitInfo(commitObj *object.Commit) CommitInfo {
	return CommitInfo{
		Hash:      commitObj.Hash.String()[:7],
		Message:   commitObj.Message,
		Author:    commitObj.Author.Name,
		CreatedAt: commitObj.Author.When,
	}
}

func sanitizeEmail(input string) string {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			out = append(out, r)
			continue
		}
		if r == ' ' || r == '-' || r == '_' {
			out = append(out, '.')
		}
	}
	if len(out) == 0 {
		return "user"
	}
	return string(out)
}
