package models

import "time"

const (
	CardStatusNormal = "normal"
	CardStatusFound  = "found"
	CardStatusGet    = "get"
)

// Handler options chosen by the finder of a card.
const (
	HandlerSelfContact = 1
	HandlerDropOff     = 2
)

// Card is a campus ID card record. SelectLoc holds the gazetteer name the
// free-text FoundLocation was resolved to, once refinement has run.
type Card struct {
	ID            int64      `json:"id"`
	CardNumber    string     `json:"card_number"`
	StudentID     string     `json:"student_id"`
	Status        string     `json:"status"`
	FoundLocation string     `json:"found_location"`
	FoundTime     *time.Time `json:"found_time,omitempty"`
	HandlerOption int        `json:"handler_option"`
	PhotoURL      string     `json:"photo_url,omitempty"`
	Contact       string     `json:"contact"`
	IsMatched     bool       `json:"is_matched"`
	SelectLoc     string     `json:"select_loc,omitempty"`
}

type HotLocation struct {
	Location   string  `json:"location"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

type HotLocationStats struct {
	TotalCards        int     `json:"total_cards"`
	CardsWithAnalysis int     `json:"cards_with_ai_analysis"`
	AnalysisCoverage  float64 `json:"ai_analysis_coverage"`
}

type HotLocations struct {
	Locations  []HotLocation    `json:"locations"`
	Statistics HotLocationStats `json:"statistics"`
}
