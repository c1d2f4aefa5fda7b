// Package layout holds the page chrome shared by every web page.
package layout

//go:generate go run github.com/a-h/templ/cmd/templ@v0.3.977 generate -path ..

import "github.com/mcoot/puzzlegame/internal/model"

// FlashMessage is a one-shot notice carried across a redirect
type FlashMessage struct {
	Type    string // success, error or info
	Message string
}

// PageData is common data every page receives
type PageData struct {
	Title  string
	Player *model.Player
	Flash  *FlashMessage
}

func pageTitle(data PageData) string {
	if data.Title == "" {
		return "Puzzles"
	}
	return data.Title + " | Puzzles"
}

func flashClass(flash *FlashMessage) string {
	return "flash flash-" + flash.Type
}
