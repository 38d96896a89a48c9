// Package campusmap turns school locations into map markers.
package campusmap

import (
	"context"
	"strings"

	"sekolahkita/internal/apperr"
	"sekolahkita/internal/model"
	"sekolahkita/internal/query"
	"sekolahkita/internal/session"
	"sekolahkita/internal/store"
)

type Category string

const (
	Classroom Category = "classroom"
	Lab       Category = "lab"
	Library   Category = "library"
	Office    Category = "office"
	Other     Category = "other"
)

var labels = map[Category]string{
	Classroom: "Ruang Kelas",
	Lab:       "Laboratorium",
	Library:   "Perpustakaan",
	Office:    "Kantor",
}

// CategoryOf maps a stored location type onto a category; unknown types are Other.
func CategoryOf(typ string) Category {
	c := Category(strings.ToLower(strings.TrimSpace(typ)))
	if _, ok := labels[c]; ok {
		return c
	}
	return Other
}

// Icon is the marker image path for c.
func (c Category) Icon() string {
	if c == Other {
		return "/icons/marker.png"
	}
	return "/icons/" + string(c) + ".png"
}

func (c Category) Label() string { return labels[c] }

type LegendEntry struct {
	Category Category `json:"category"`
	Label    string   `json:"label"`
	Icon     string   `json:"icon"`
}

// Legend lists the named categories in display order.
func Legend() []LegendEntry {
	cats := []Category{Classroom, Lab, Library, Office}
	out := make([]LegendEntry, 0, len(cats))
	for _, c := range cats {
		out = append(out, LegendEntry{Category: c, Label: c.Label(), Icon: c.Icon()})
	}
	return out
}

type Marker struct {
	ID          model.ID `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Latitude    float64  `json:"latitude"`
	Longitude   float64  `json:"longitude"`
	Category    Category `json:"category"`
	Icon        string   `json:"icon"`
	PhotoURL    string   `json:"photo_url,omitempty"`
}

type Center struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// View is everything the map page renders.
type View struct {
	Center  Center        `json:"center"`
	Zoom    int           `json:"zoom"`
	Markers []Marker      `json:"markers"`
	Legend  []LegendEntry `json:"legend"`
}

var DefaultCenter = Center{Lat: -6.7729486, Lng: 110.6300627}

const DefaultZoom = 17

type Service struct {
	store  store.Client
	center Center
	zoom   int
}

// NewService uses the default centre and zoom when they are zero.
func NewService(c store.Client, center Center, zoom int) *Service {
	if center == (Center{}) {
		center = DefaultCenter
	}
	if zoom <= 0 {
		zoom = DefaultZoom
	}
	return &Service{store: c, center: center, zoom: zoom}
}

// View loads every location, keeping only those in category when it is set.
func (s *Service) View(ctx context.Context, sess session.Session, category string) (View, error) {
	var want Category
	if category = strings.TrimSpace(category); category != "" {
		want = Category(strings.ToLower(category))
		if _, ok := labels[want]; !ok && want != Other {
			return View{}, apperr.Validation("unknown location type %q", category)
		}
	}

	q, err := query.From(model.TableLocations).Build()
	if err != nil {
		return View{}, err
	}
	var rows []model.Location
	if err := store.Scoped(s.store, sess).Query(ctx, q, &rows); err != nil {
		return View{}, err
	}

	markers := make([]Marker, 0, len(rows))
	for _, l := range rows {
		c := CategoryOf(l.Type)
		if want != "" && c != want {
			continue
		}
		markers = append(markers, Marker{
			ID:          l.ID,
			Name:        l.Name,
			Description: l.Description,
			Latitude:    l.Latitude,
			Longitude:   l.Longitude,
			Category:    c,
			Icon:        c.Icon(),
			PhotoURL:    l.PhotoURL,
		})
	}
	return View{Center: s.center, Zoom: s.zoom, Markers: markers, Legend: Legend()}, nil
}
