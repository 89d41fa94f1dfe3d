package store

import "fmt"

// Settings are the user preferences consulted by the card application.
type Settings struct {
	ActiveCardID      int64 `json:"active_card_id"`
	ForceApproval     bool  `json:"force_approval"`
	BiometricRequired bool  `json:"biometric_required"`
}

// Settings returns the current settings.
func (s *Store) Settings() (Settings, error) {
	done, err := s.begin()
	if err != nil {
		return Settings{}, err
	}
	defer done()

	return s.doc.Settings, nil
}

// SaveSettings replaces the settings. A non-zero active card must exist.
func (s *Store) SaveSettings(settings Settings) error {
	done, err := s.begin()
	if err != nil {
		return err
	}
	defer done()

	if settings.ActiveCardID != 0 && s.cardIndex(settings.ActiveCardID) < 0 {
		return fmt.Errorf("active card %d: %w", settings.ActiveCardID, ErrNotFound)
	}

	prev := s.doc.Settings
	s.doc.Settings = settings
	if err := s.flush(); err != nil {
		s.doc.Settings = prev

		return err
	}

	return nil
}
