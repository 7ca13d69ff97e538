package repository

import (
	"strconv"

	"inkwell/models"
)

type PostPage struct {
	Posts    []models.Post
	Number   int // 1-indexed
	NumPages int
	Total    int64
}

// ParsePage reads a ?page= value. Anything that is not an integer means the
// first page; range problems are left to the listing, which clamps.
func ParsePage(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 1
	}
	return n
}

// clampPage resolves a requested page against total items. An empty result
// still has one page; out-of-range requests get the last page.
func clampPage(requested int, total int64) (number, numPages int) {
	numPages = int((total + PageSize - 1) / PageSize)
	if numPages < 1 {
		numPages = 1
	}
	if requested < 1 || requested > numPages {
		return numPages, numPages
	}
	return requested, numPages
}

func (p *PostPage) offset() int {
	return (p.Number - 1) * PageSize
}

func (p *PostPage) HasPrevious() bool {
	return p.Number > 1
}

func (p *PostPage) HasNext() bool {
	return p.Number < p.NumPages
}

func (p *PostPage) PreviousNumber() int {
	return p.Number - 1
}

func (p *PostPage) NextNumber() int {
	return p.Number + 1
}

// Pages lists every page number, for the pager links.
func (p *PostPage) Pages() []int {
	pages := make([]int, p.NumPages)
	for i := range pages {
		pages[i] = i + 1
	}
	return pages
}
