// Package history keeps every revision of a project's trade documents in a
// per-project git repository. The database holds only the current instance
// of each document; the repo is the audit trail users browse when a buyer
// asks "what did the PI say in March".
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/jhyun7932-pixel/k-beauty-biz-buddy-sub002/internal/tradedoc"
)

// CommitInfo describes one revision of a project's document set.
type CommitInfo struct {
	Hash      string    `json:"hash"`
	Message   string    `json:"message"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
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

// EnsureProjectRepo initializes the history repository for a project. Safe
// to call repeatedly.
func (s *Service) EnsureProjectRepo(projectID, author string) error {
	lock := s.projectLock(projectID)
	lock.Lock()
	defer lock.Unlock()

	path := s.repoPath(projectID)
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

	meta := fmt.Sprintf("{\n  \"projectId\": %q\n}\n", projectID)
	if err := os.WriteFile(filepath.Join(path, "project.json"), []byte(meta), 0o644); err != nil {
		return fmt.Errorf("write project meta: %w", err)
	}
	if _, err := worktree.Add("project.json"); err != nil {
		return fmt.Errorf("git add project meta: %w", err)
	}
	hash, err := worktree.Commit("Initialize project history", &git.CommitOptions{
		Author: signature(author),
	})
	if err != nil {
		return fmt.Errorf("commit project meta: %w", err)
	}
	if err := repo.Storer.SetReference(plumbing.NewHashReference(plumbing.NewBranchReferenceName("main"), hash)); err != nil {
		return fmt.Errorf("set main branch ref: %w", err)
	}
	if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName("main"))); err != nil {
		return fmt.Errorf("set HEAD to main: %w", err)
	}
	return nil
}

// CommitDocument records a new revision of one document. The document is
// written as {key}.json in the repo root.
func (s *Service) CommitDocument(projectID string, doc tradedoc.Document, author, message string) (CommitInfo, error) {
	lock := s.projectLock(projectID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(projectID))
	if err != nil {
		return CommitInfo{}, fmt.Errorf("open repo: %w", err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return CommitInfo{}, fmt.Errorf("open worktree: %w", err)
	}

	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return CommitInfo{}, fmt.Errorf("marshal document: %w", err)
	}

	filename := docFilename(doc.Key)
	repoRoot := worktree.Filesystem.Root()
	if err := os.WriteFile(filepath.Join(repoRoot, filename), append(payload, '\n'), 0o644); err != nil {
		return CommitInfo{}, fmt.Errorf("write %s: %w", filename, err)
	}
	if _, err := worktree.Add(filename); err != nil {
		return CommitInfo{}, fmt.Errorf("git add %s: %w", filename, err)
	}

	if message == "" {
		message = fmt.Sprintf("Update %s", doc.Key)
	}
	hash, err := worktree.Commit(message, &git.CommitOptions{
		Author: signature(author),
	})
	if err != nil {
		return CommitInfo{}, fmt.Errorf("commit document: %w", err)
	}

	commitObj, err := repo.CommitObject(hash)
	if err != nil {
		return CommitInfo{}, fmt.Errorf("read commit object: %w", err)
	}
	return toCommitInfo(commitObj), nil
}

// GetDocumentAt loads a document as it was at the given commit.
func (s *Service) GetDocumentAt(projectID string, key tradedoc.Key, hash string) (tradedoc.Document, error) {
	lock := s.projectLock(projectID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(projectID))
	if err != nil {
		return tradedoc.Document{}, fmt.Errorf("open repo: %w", err)
	}

	resolvedHash, err := resolveHash(repo, hash)
	if err != nil {
		return tradedoc.Document{}, err
	}
	commitObj, err := repo.CommitObject(resolvedHash)
	if err != nil {
		return tradedoc.Document{}, fmt.Errorf("read commit %s: %w", hash, err)
	}
	return readDocumentFromCommit(commitObj, key)
}

// DocumentHistory lists the revisions that touched one document, newest
// first.
func (s *Service) DocumentHistory(projectID string, key tradedoc.Key, limit int) ([]CommitInfo, error) {
	filename := docFilename(key)
	return s.log(projectID, &filename, limit)
}

// ProjectHistory lists every revision in the project, newest first.
func (s *Service) ProjectHistory(projectID string, limit int) ([]CommitInfo, error) {
	return s.log(projectID, nil, limit)
}

func (s *Service) log(projectID string, filename *string, limit int) ([]CommitInfo, error) {
	lock := s.projectLock(projectID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(projectID))
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}

	ref, err := repo.Reference(plumbing.NewBranchReferenceName("main"), true)
	if err != nil {
		return nil, fmt.Errorf("resolve main: %w", err)
	}

	iter, err := repo.Log(&git.LogOptions{From: ref.Hash(), FileName: filename})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	items := make([]CommitInfo, 0, limit)
	count := 0
	err = iter.ForEach(func(commitObj *object.Commit) error {
		items = append(items, toCommitInfo(commitObj))
		count++
		if limit > 0 && count >= limit {
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return items, nil
}

func (s *Service) repoPath(projectID string) string {
	return filepath.Join(s.baseDir, projectID)
}

func (s *Service) projectLock(projectID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.locks[projectID]
	if ok {
		return lock
	}
	lock = &sync.Mutex{}
	s.locks[projectID] = lock
	return lock
}

func docFilename(key tradedoc.Key) string {
	return string(key) + ".json"
}

func signature(author string) *object.Signature {
	return &object.Signature{
		Name:  author,
		Email: fmt.Sprintf("%s@local.bizbuddy.dev", sanitizeEmail(author)),
		When:  time.Now(),
	}
}

func readDocumentFromCommit(commitObj *object.Commit, key tradedoc.Key) (tradedoc.Document, error) {
	file, err := commitObj.File(docFilename(key))
	if err != nil {
		return tradedoc.Document{}, fmt.Errorf("load %s from commit: %w", docFilename(key), err)
	}
	reader, err := file.Reader()
	if err != nil {
		return tradedoc.Document{}, fmt.Errorf("open document reader: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return tradedoc.Document{}, fmt.Errorf("read document bytes: %w", err)
	}

	var doc tradedoc.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return tradedoc.Document{}, fmt.Errorf("decode commit document: %w", err)
	}
	return doc, nil
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
	runes := make([]rune, 0, len(input))
	for _, r := range input {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			runes = append(runes, r)
			continue
		}
		if r == ' ' || r == '-' || r == '_' {
			runes = append(runes, '.')
		}
	}
	if len(runes) == 0 {
		return "user"
	}
	return string(runes)
}

func resolveHash(repo *git.Repository, hash string) (plumbing.Hash, error) {
	if len(hash) == 40 {
		return plumbing.NewHash(hash), nil
	}
	resolved, err := repo.ResolveRevision(plumbing.Revision(hash))
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("resolve hash %s: %w", hash, err)
	}
	return *resolved, nil
}
