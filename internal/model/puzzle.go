package model

// Puzzle is a catalog entry describing playable puzzle content
type Puzzle struct {
	Ref         PuzzleRef `yaml:"ref"`
	Title       string    `yaml:"title"`
	Description string    `yaml:"description"`
	Difficulty  string    `yaml:"difficulty"`
}
