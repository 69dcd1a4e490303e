package game

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"outsider/internal/scenario"
)

type Phase string

const (
	PhaseWaiting Phase = "waiting"
	PhasePlaying Phase = "playing"
	PhaseVoting  Phase = "voting"
	PhaseEnded   Phase = "ended"
)

type Side string

const (
	SideOutsider Side = "outsider"
	SideGroup    Side = "group"
)

// EndReason records which rule decided the round.
type EndReason string

const (
	ReasonGuessCorrect EndReason = "guess_correct"
	ReasonGuessWrong   EndReason = "guess_wrong"
	ReasonVote         EndReason = "vote"
	ReasonNoVerdict    EndReason = "no_verdict"
	ReasonOutsiderLeft EndReason = "outsider_left"
)

// OutsiderRole is dealt to the outsider in place of a scenario role.
const OutsiderRole = scenario.OutsiderRole

type Player struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Role         string    `json:"role,omitempty"`
	ScenarioName string    `json:"scenarioName,omitempty"`
	IsOutsider   bool      `json:"isOutsider"`
	JoinedAt     time.Time `json:"joinedAt"`
}

// RoleAssignment is the private per-player payload for a round.
type RoleAssignment struct {
	IsOutsider   bool    `json:"isOutsider"`
	Role         string  `json:"role"`
	ScenarioName *string `json:"scenarioName"`
}

// Minutes is a round length as chosen when creating a room. Zero means
// unlimited and encodes as "unlimited".
type Minutes int

const Unlimited Minutes = 0

const maxRoundMinutes = 60

func (m Minutes) IsUnlimited() bool {
	return m <= 0
}

func (m Minutes) Duration() time.Duration {
	if m.IsUnlimited() {
		return 0
	}
	return time.Duration(m) * time.Minute
}

func (m Minutes) Validate() error {
	if m < 0 || m > maxRoundMinutes {
		return fmt.Errorf("round duration must be between 1 and %d minutes or unlimited", maxRoundMinutes)
	}
	return nil
}

func (m Minutes) MarshalJSON() ([]byte, error) {
	if m.IsUnlimited() {
		return []byte(`"unlimited"`), nil
	}
	return []byte(strconv.Itoa(int(m))), nil
}

func (m *Minutes) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		text = strings.TrimSpace(text)
		if strings.EqualFold(text, "unlimited") {
			*m = Unlimited
			return nil
		}
		value, err := strconv.Atoi(text)
		if err != nil || value <= 0 {
			return errors.New(`round duration must be a number of minutes or "unlimited"`)
		}
		*m = Minutes(value)
		return nil
	}
	var number float64
	if err := json.Unmarshal(data, &number); err != nil {
		return errors.New(`round duration must be a number of minutes or "unlimited"`)
	}
	if number <= 0 || number != float64(int(number)) {
		return errors.New("round duration must be a positive whole number of minutes")
	}
	*m = Minutes(int(number))
	return nil
}

// MinutesOf converts a room's configured duration back to whole minutes.
func MinutesOf(d time.Duration) Minutes {
	if d <= 0 {
		return Unlimited
	}
	minutes := int(d / time.Minute)
	if minutes == 0 {
		minutes = 1
	}
	return Minutes(minutes)
}
