package types

import (
	"encoding/json"
	"maps"
)

// Class is a named grading rubric owned by a user.
type Class struct {
	// ItemID identifies the class. Depending on the configured scope it is
	// unique globally or only among the classes of one owner.
	ItemID int `json:"item_id"`

	// Name is the non-empty display name.
	Name string `json:"name"`

	// Price is an optional cost attached to the class. Defaults to 0.
	Price float64 `json:"price"`

	// IsOffer flags the class as on offer. Defaults to false.
	IsOffer bool `json:"is_offer"`

	// Owner is the username of the owning user.
	Owner string `json:"owner"`

	// OwnerID is the durable identifier of the owning user. It is used to
	// lay out the class on disk and is not part of the API payload.
	OwnerID string `json:"-"`

	// Partials are the grading subsections, in insertion order.
	Partials []Partial `json:"partials"`
}

// Clone returns a deep copy so callers can't mutate stored state.
func (c Class) Clone() Class {
	out := c
	if c.Partials != nil {
		out.Partials = make([]Partial, len(c.Partials))
		for i, p := range c.Partials {
			out.Partials[i] = p.Clone()
		}
	}
	return out
}

// PartialIndex returns the position of the first partial named name, or -1.
func (c Class) PartialIndex(name string) int {
	for i, p := range c.Partials {
		if p.Name == name {
			return i
		}
	}
	return -1
}

// Partial is a grading subsection within a class. Besides the typed fields it
// keeps any additional attributes the client sent in Extra.
type Partial struct {
	Name       string         `json:"name" validate:"required"`
	Max        *float64       `json:"max,omitempty"`
	Activities []Activity     `json:"activities"`
	Extra      map[string]any `json:"-"`
	// ClearMax is set when a request carried an explicit "max": null.
	ClearMax bool `json:"-"`
}

// Clone returns a deep copy of the partial. ClearMax only describes an
// incoming update and is not copied.
func (p Partial) Clone() Partial {
	out := p
	out.ClearMax = false
	if p.Max != nil {
		m := *p.Max
		out.Max = &m
	}
	if p.Activities != nil {
		out.Activities = make([]Activity, len(p.Activities))
		for i, a := range p.Activities {
			out.Activities[i] = a.Clone()
		}
	}
	out.Extra = maps.Clone(p.Extra)
	return out
}

// Merge overwrites the fields present in update, leaving the rest as they are.
// Activities are replaced only when update carries them.
func (p *Partial) Merge(update Partial) {
	if update.Name != "" {
		p.Name = update.Name
	}
	switch {
	case update.Max != nil:
		m := *update.Max
		p.Max = &m
	case update.ClearMax:
		p.Max = nil
	}
	if update.Activities != nil {
		p.Activities = update.Clone().Activities
	}
	if len(update.Extra) > 0 {
		if p.Extra == nil {
			p.Extra = make(map[string]any, len(update.Extra))
		}
		maps.Copy(p.Extra, update.Extra)
	}
}

func (p Partial) MarshalJSON() ([]byte, error) {
	doc := make(map[string]any, len(p.Extra)+3)
	maps.Copy(doc, p.Extra)
	doc["name"] = p.Name
	if p.Max != nil {
		doc["max"] = *p.Max
	}
	activities := p.Activities
	if activities == nil {
		activities = []Activity{}
	}
	doc["activities"] = activities
	return json.Marshal(doc)
}

func (p *Partial) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var out Partial
	if v, ok := raw["name"]; ok {
		if err := json.Unmarshal(v, &out.Name); err != nil {
			return err
		}
		delete(raw, "name")
	}
	if v, ok := raw["max"]; ok {
		if string(v) == "null" {
			out.ClearMax = true
		} else {
			var m float64
			if err := json.Unmarshal(v, &m); err != nil {
				return err
			}
			out.Max = &m
		}
		delete(raw, "max")
	}
	if v, ok := raw["activities"]; ok {
		if string(v) != "null" {
			out.Activities = []Activity{}
			if err := json.Unmarshal(v, &out.Activities); err != nil {
				return err
			}
		}
		delete(raw, "activities")
	}

	extra, err := decodeExtra(raw)
	if err != nil {
		return err
	}
	out.Extra = extra
	*p = out
	return nil
}

// Activity is a gradable unit within a partial. ID is assigned from the
// activity count at insertion time and is not renumbered on deletion.
type Activity struct {
	ID    int            `json:"id"`
	Extra map[string]any `json:"-"`
}

// Clone returns a deep copy of the activity.
func (a Activity) Clone() Activity {
	return Activity{ID: a.ID, Extra: maps.Clone(a.Extra)}
}

func (a Activity) MarshalJSON() ([]byte, error) {
	doc := make(map[string]any, len(a.Extra)+1)
	maps.Copy(doc, a.Extra)
	doc["id"] = a.ID
	return json.Marshal(doc)
}

func (a *Activity) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var out Activity
	if v, ok := raw["id"]; ok {
		if string(v) != "null" {
			if err := json.Unmarshal(v, &out.ID); err != nil {
				return err
			}
		}
		delete(raw, "id")
	}

	extra, err := decodeExtra(raw)
	if err != nil {
		return err
	}
	out.Extra = extra
	*a = out
	return nil
}

func decodeExtra(raw map[string]json.RawMessage) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	extra := make(map[string]any, len(raw))
	for key, value := range raw {
		var v any
		if err := json.Unmarshal(value, &v); err != nil {
			return nil, err
		}
		extra[key] = v
	}
	return extra, nil
}
