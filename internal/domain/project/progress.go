package project

// Progress scores how complete a model is, 0 to 100. It is derived from
// state and never stored independently of it.
func Progress(rec *Record) int {
	if rec == nil {
		return 0
	}
	actions := 0
	for _, o := range rec.Objects {
		actions += len(o.Actions)
	}

	score := capped(len(rec.Objects)*10, 40) +
		capped(len(rec.Links)*5, 20) +
		capped(actions*2, 20) +
		capped(len(rec.Integrations)*5, 10) +
		capped(len(rec.AIRequirements)*5, 10)
	return capped(score, 100)
}

func capped(v, limit int) int {
	if v > limit {
		return limit
	}
	return v
}

// Validate checks the structure every stored state must have.
func Validate(rec *Record) error {
	switch {
	case rec == nil:
		return ErrInvalidState
	case rec.Objects == nil:
		return ErrInvalidState
	case rec.Links == nil:
		return ErrInvalidState
	}
	return nil
}

func summarize(rec *Record, cloudID string, legacy bool) ListItem {
	return ListItem{
		ID:             rec.ID,
		Name:           rec.Name,
		Industry:       rec.Industry,
		UseCase:        rec.UseCase,
		Status:         rec.Status,
		Progress:       Progress(rec),
		CloudProjectID: cloudID,
		Legacy:         legacy,
		CreatedAt:      rec.CreatedAt,
		UpdatedAt:      rec.UpdatedAt,
	}
}
