package repository

import (
	"time"

	"github.com/okian/calibrate/internal/domain/model"
)

// snapshotDoc is the BSON shape of a ledger entry. Kept separate from the
// domain model so wire concerns never leak into it.
type snapshotDoc struct {
	ID        string             `bson:"id"`
	PlayerID  string             `bson:"player_id"`
	CoachID   string             `bson:"coach_id"`
	CreatedAt time.Time          `bson:"created_at"`
	Context   contextDoc         `bson:"context"`
	Values    []metricValueDoc   `bson:"values"`
	Positions []positionDoc      `bson:"positions,omitempty"`
	Traits    map[string]float64 `bson:"traits,omitempty"`
	Note      string             `bson:"note,omitempty"`
}

type contextDoc struct {
	Center   string `bson:"center,omitempty"`
	Position string `bson:"position,omitempty"`
	AgeGroup string `bson:"age_group,omitempty"`
	Season   string `bson:"season,omitempty"`
	Source   string `bson:"source,omitempty"`
}

type metricValueDoc struct {
	Key        string   `bson:"key"`
	Value      float64  `bson:"value"`
	Confidence *float64 `bson:"confidence,omitempty"`
	Comment    string   `bson:"comment,omitempty"`
}

type positionDoc struct {
	Position    string  `bson:"position"`
	Suitability float64 `bson:"suitability"`
}

func toDocument(s model.Snapshot) snapshotDoc {
	d := snapshotDoc{
		ID:        s.ID,
		PlayerID:  s.PlayerID,
		CoachID:   s.CoachID,
		CreatedAt: s.CreatedAt,
		Context: contextDoc{
			Center:   s.Context.Center,
			Position: s.Context.Position,
			AgeGroup: s.Context.AgeGroup,
			Season:   s.Context.Season,
			Source:   s.Context.Source,
		},
		Traits: s.Traits,
		Note:   s.Note,
	}
	d.Values = make([]metricValueDoc, len(s.Values))
	for i, v := range s.Values {
		d.Values[i] = metricValueDoc{Key: v.Key, Value: v.Value, Confidence: v.Confidence, Comment: v.Comment}
	}
	for _, p := range s.Positions {
		d.Positions = append(d.Positions, positionDoc{Position: p.Position, Suitability: p.Suitability})
	}
	return d
}

func (d snapshotDoc) toModel() model.Snapshot {
	s := model.Snapshot{
		ID:        d.ID,
		PlayerID:  d.PlayerID,
		CoachID:   d.CoachID,
		CreatedAt: d.CreatedAt,
		Context: model.Context{
			Center:   d.Context.Center,
			Position: d.Context.Position,
			AgeGroup: d.Context.AgeGroup,
			Season:   d.Context.Season,
			Source:   d.Context.Source,
		},
		Traits: d.Traits,
		Note:   d.Note,
	}
	s.Values = make([]model.MetricValue, len(d.Values))
	for i, v := range d.Values {
		s.Values[i] = model.MetricValue{Key: v.Key, Value: v.Value, Confidence: v.Confidence, Comment: v.Comment}
	}
	for _, p := range d.Positions {
		s.Positions = append(s.Positions, model.PositionRating{Position: p.Position, Suitability: p.Suitability})
	}
	return s
}
