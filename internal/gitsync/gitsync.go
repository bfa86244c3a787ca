// Package gitsync provides optional git integration for the content tree:
// automatic commits after writes and per-page history. The content tree is
// the source of truth with or without git; every operation here is
// best-effort and must never fail a page save.
package gitsync

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Commit describes one entry in a page's history.
type Commit struct {
	Hash    string    `json:"hash"`
	Author  string    `json:"author"`
	Message string    `json:"message"`
	When    time.Time `json:"when"`
}

// Syncer commits content changes to the repository at the content root.
type Syncer struct {
	repo   *git.Repository
	logger *slog.Logger
}

// Open opens the git repository at root. A content tree that is not a
// repository is not an error; it returns (nil, nil) and callers skip git
// integration.
func Open(root string, logger *slog.Logger) (*Syncer, error) {
	repo, err := git.PlainOpen(root)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("gitsync: open %s: %w", root, err)
	}
	return &Syncer{repo: repo, logger: logger}, nil
}

// Init creates a repository at root, or opens the existing one.
func Init(root string, logger *slog.Logger) (*Syncer, error) {
	repo, err := git.PlainInit(root, false)
	if errors.Is(err, git.ErrRepositoryAlreadyExists) {
		return Open(root, logger)
	}
	if err != nil {
		return nil, fmt.Errorf("gitsync: init %s: %w", root, err)
	}
	return &Syncer{repo: repo, logger: logger}, nil
}

// AutoCommit stages the given paths (relative to the content root) and
// commits them. Nothing staged means nothing to commit and no error.
func (s *Syncer) AutoCommit(paths []string, message string) error {
	wt, err := s.repo.Worktree()
	if err != nil {
		return fmt.Errorf("gitsync: worktree: %w", err)
	}

	staged := 0
	for _, p := range paths {
		// Add handles deletions too: a missing path stages its removal.
		if _, err := wt.Add(p); err != nil {
			s.logger.Warn("gitsync: stage failed", slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		staged++
	}
	if staged == 0 {
		return nil
	}

	status, err := wt.Status()
	if err != nil {
		return fmt.Errorf("gitsync: status: %w", err)
	}
	if status.IsClean() {
		return nil
	}

	_, err = wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  "arbor",
			Email: "arbor@localhost",
			When:  time.Now(),
		},
	})
	if err != nil {
		return fmt.Errorf("gitsync: commit: %w", err)
	}
	s.logger.Debug("gitsync: committed", slog.String("message", message), slog.Int("paths", staged))
	return nil
}

// FileHistory returns up to limit commits touching the given path, newest
// first.
func (s *Syncer) FileHistory(path string, limit int) ([]Commit, error) {
	if limit <= 0 {
		limit = 20
	}
	iter, err := s.repo.Log(&git.LogOptions{FileName: &path})
	if err != nil {
		return nil, fmt.Errorf("gitsync: log %s: %w", path, err)
	}
	defer iter.Close()

	var out []Commit
	for len(out) < limit {
		c, err := iter.Next()
		if err != nil {
			break
		}
		out = append(out, Commit{
			Hash:    c.Hash.String(),
			Author:  c.Author.Name,
			Message: c.Message,
			When:    c.Author.When,
		})
	}
	return out, nil
}
