package nutrition

import (
	"github.com/google/uuid"

	"github.com/2beens/dayjournal/internal/journal"
)

const DefaultProteinGoal = 150

type FoodEntry struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Quantity string   `json:"quantity,omitempty"`
	Protein  float64  `json:"protein"`
	Calories *float64 `json:"calories,omitempty"`
	Time     string   `json:"time,omitempty"`
	Eaten    bool     `json:"eaten,omitempty"`
}

// Day is one user's nutrition record for one calendar date.
// TotalProtein and TotalCalories are derived from Foods and recomputed
// after every mutation; they are never authoritative on their own.
type Day struct {
	Date              journal.DateKey `json:"date"`
	ProteinGoal       float64         `json:"proteinGoal"`
	Foods             []FoodEntry     `json:"foods"`
	TotalProtein      float64         `json:"totalProtein"`
	TotalCalories     float64         `json:"totalCalories"`
	AIRecommendations []string        `json:"aiRecommendations,omitempty"`
}

func NewDay(date journal.DateKey, proteinGoal float64) *Day {
	if proteinGoal <= 0 {
		proteinGoal = DefaultProteinGoal
	}
	return &Day{
		Date:        date,
		ProteinGoal: proteinGoal,
		Foods:       []FoodEntry{},
	}
}

func (d *Day) Copy() Day {
	cp := *d
	cp.Foods = make([]FoodEntry, len(d.Foods))
	for i, f := range d.Foods {
		fCp := f
		if f.Calories != nil {
			cal := *f.Calories
			fCp.Calories = &cal
		}
		cp.Foods[i] = fCp
	}
	cp.AIRecommendations = append([]string(nil), d.AIRecommendations...)
	return cp
}

// AddFood appends the entry under a fresh id and returns it.
func (d *Day) AddFood(entry FoodEntry) *FoodEntry {
	entry.ID = uuid.NewString()
	d.Foods = append(d.Foods, entry)
	d.recomputeTotals()
	return &d.Foods[len(d.Foods)-1]
}

// RemoveFood is a no-op for an unknown id.
func (d *Day) RemoveFood(foodID string) {
	for i, f := range d.Foods {
		if f.ID == foodID {
			d.Foods = append(d.Foods[:i], d.Foods[i+1:]...)
			d.recomputeTotals()
			return
		}
	}
}

type FoodUpdate struct {
	Name     *string  `json:"name,omitempty"`
	Quantity *string  `json:"quantity,omitempty"`
	Protein  *float64 `json:"protein,omitempty"`
	Calories *float64 `json:"calories,omitempty"`
	Time     *string  `json:"time,omitempty"`
	Eaten    *bool    `json:"eaten,omitempty"`
}

// UpdateFood applies the non-nil fields of the update to the entry
// with the given id. Unknown ids are ignored.
func (d *Day) UpdateFood(foodID string, update FoodUpdate) {
	for i := range d.Foods {
		if d.Foods[i].ID != foodID {
			continue
		}
		f := &d.Foods[i]
		if update.Name != nil {
			f.Name = *update.Name
		}
		if update.Quantity != nil {
			f.Quantity = *update.Quantity
		}
		if update.Protein != nil {
			f.Protein = *update.Protein
		}
		if update.Calories != nil {
			cal := *update.Calories
			f.Calories = &cal
		}
		if update.Time != nil {
			f.Time = *update.Time
		}
		if update.Eaten != nil {
			f.Eaten = *update.Eaten
		}
		d.recomputeTotals()
		return
	}
}

// Backfill normalizes a record read from storage: nil foods become an
// empty list and stored totals are replaced by recomputed ones, since
// the entries themselves are the source of truth.
func (d *Day) Backfill() {
	if d.Foods == nil {
		d.Foods = []FoodEntry{}
	}
	d.recomputeTotals()
}

// day totals sum over ALL entries: eaten status never affects them,
// an "eaten so far" subtotal is a presentation concern
func (d *Day) recomputeTotals() {
	var protein, calories float64
	for _, f := range d.Foods {
		protein += f.Protein
		if f.Calories != nil {
			calories += *f.Calories
		}
	}
	d.TotalProtein = protein
	d.TotalCalories = calories
}
