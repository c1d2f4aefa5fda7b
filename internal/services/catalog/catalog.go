package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/mcoot/puzzlegame/internal/model"
)

// file is the on-disk catalog layout
type file struct {
	Puzzles []model.Puzzle `yaml:"puzzles"`
}

// Catalog is an immutable, in-memory index of known puzzles
type Catalog struct {
	puzzles map[model.PuzzleRef]model.Puzzle
	order   []model.PuzzleRef
}

// New builds a catalog from puzzles; refs must be unique and non-empty
func New(puzzles []model.Puzzle) (*Catalog, error) {
	c := &Catalog{puzzles: make(map[model.PuzzleRef]model.Puzzle, len(puzzles))}
	for _, p := range puzzles {
		if p.Ref == "" {
			return nil, errors.New("puzzle ref is required")
		}
		if _, dup := c.puzzles[p.Ref]; dup {
			return nil, fmt.Errorf("duplicate puzzle ref %q", p.Ref)
		}
		if p.Title == "" {
			p.Title = string(p.Ref)
		}
		c.puzzles[p.Ref] = p
		c.order = append(c.order, p.Ref)
	}
	sort.Slice(c.order, func(i, j int) bool { return c.order[i] < c.order[j] })
	return c, nil
}

// Parse reads a YAML catalog
func Parse(r io.Reader) (*Catalog, error) {
	var f file
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return New(f.Puzzles)
}

// Load reads a YAML catalog from path
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(bytes.NewReader(data))
}

// Default is the built-in catalog used when no file is configured
func Default() *Catalog {
	c, _ := New([]model.Puzzle{
		{Ref: "daily-mini", Title: "Daily Mini", Description: "A quick five-by-five warm-up.", Difficulty: "easy"},
		{Ref: "weekend-cryptic", Title: "Weekend Cryptic", Description: "Fifteen squares of wordplay.", Difficulty: "hard"},
		{Ref: "word-ladder", Title: "Word Ladder", Description: "Change one letter at a time.", Difficulty: "medium"},
	})
	return c
}

// Get returns the puzzle for ref
func (c *Catalog) Get(ref model.PuzzleRef) (model.Puzzle, error) {
	p, ok := c.puzzles[ref]
	if !ok {
		return model.Puzzle{}, model.ErrPuzzleNotFound
	}
	return p, nil
}

// Has reports whether ref is in the catalog
func (c *Catalog) Has(ref model.PuzzleRef) bool {
	_, ok := c.puzzles[ref]
	return ok
}

// List returns all puzzles ordered by ref
func (c *Catalog) List() []model.Puzzle {
	out := make([]model.Puzzle, 0, len(c.order))
	for _, ref := range c.order {
		out = append(out, c.puzzles[ref])
	}
	return out
}
