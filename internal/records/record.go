package records

import (
	"strconv"
	"strings"
	"time"
)

// Stance is the canvassed subject's disposition.
type Stance string

const (
	StanceSupportive Stance = "supportive"
	StanceOpposed    Stance = "opposed"
	StanceNeutral    Stance = "neutral"
)

// Stances lists the recognized labels in display order.
var Stances = []Stance{StanceSupportive, StanceOpposed, StanceNeutral}

// arabicStances maps the labels collectors type in the field to the stored
// values.
var arabicStances = map[string]Stance{
	"مؤيد":  StanceSupportive,
	"معارض": StanceOpposed,
	"محايد": StanceNeutral,
}

// ParseStance matches text against the recognized labels, English or Arabic,
// ignoring case and surrounding whitespace. The returned Stance is always one
// of the English constants.
func ParseStance(text string) (Stance, bool) {
	t := strings.ToLower(strings.TrimSpace(text))
	if s, ok := arabicStances[t]; ok {
		return s, true
	}
	s := Stance(t)
	return s, s.Valid()
}

func (s Stance) Valid() bool {
	switch s {
	case StanceSupportive, StanceOpposed, StanceNeutral:
		return true
	}
	return false
}

// MaxExtractedText bounds the stored extraction text, in characters.
const MaxExtractedText = 500

// VoterRecord is one committed intake. SequenceNumber is not stored; it is
// the 1-based row position assigned when the range is read.
type VoterRecord struct {
	SequenceNumber int       `json:"sequenceNumber"`
	CapturedAt     time.Time `json:"capturedAt"`
	NationalID     string    `json:"nationalId"`
	FamilyName     string    `json:"familyName"`
	PhoneNumber    string    `json:"phoneNumber"`
	Stance         Stance    `json:"stance"`
	Latitude       *float64  `json:"latitude,omitempty"`
	Longitude      *float64  `json:"longitude,omitempty"`
	DocumentLink   string    `json:"documentLink"`
	ExtractedText  string    `json:"extractedText,omitempty"`
	CollectorID    string    `json:"collectorId"`
}

// column order of the voters range
const (
	colCapturedAt = iota
	colNationalID
	colFamilyName
	colPhone
	colStance
	colLatitude
	colLongitude
	colDocumentLink
	colExtractedText
	colCollectorID
	numColumns
)

func (r VoterRecord) row() []string {
	cells := make([]string, numColumns)
	cells[colCapturedAt] = r.CapturedAt.UTC().Format(time.RFC3339)
	cells[colNationalID] = r.NationalID
	cells[colFamilyName] = r.FamilyName
	cells[colPhone] = r.PhoneNumber
	cells[colStance] = string(r.Stance)
	cells[colLatitude] = formatCoord(r.Latitude)
	cells[colLongitude] = formatCoord(r.Longitude)
	cells[colDocumentLink] = r.DocumentLink
	cells[colExtractedText] = truncate(r.ExtractedText, MaxExtractedText)
	cells[colCollectorID] = r.CollectorID
	return cells
}

// fromRow tolerates short and malformed rows: missing cells read as empty,
// unparsable timestamps as zero, unparsable coordinates as absent.
func fromRow(seq int, cells []string) VoterRecord {
	cell := func(i int) string {
		if i < len(cells) {
			return strings.TrimSpace(cells[i])
		}
		return ""
	}
	r := VoterRecord{
		SequenceNumber: seq,
		NationalID:     cell(colNationalID),
		FamilyName:     cell(colFamilyName),
		PhoneNumber:    cell(colPhone),
		Stance:         readStance(cell(colStance)),
		Latitude:       parseCoord(cell(colLatitude)),
		Longitude:      parseCoord(cell(colLongitude)),
		DocumentLink:   cell(colDocumentLink),
		ExtractedText:  cell(colExtractedText),
		CollectorID:    cell(colCollectorID),
	}
	if t, err := time.Parse(time.RFC3339, cell(colCapturedAt)); err == nil {
		r.CapturedAt = t
	}
	return r
}

// readStance canonicalizes recognized labels and keeps anything else verbatim.
func readStance(s string) Stance {
	if st, ok := ParseStance(s); ok {
		return st
	}
	return Stance(s)
}

func formatCoord(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func parseCoord(s string) *float64 {
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
