package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// #region record
// Record is the persisted form of a ledger.
type Record struct {
	TotalDebt     float64          `json:"total_debt"`
	DebtDecayRate float64          `json:"debt_decay_rate"`
	Forgiveness   Forgiveness      `json:"forgiveness"`
	Claims        []Claim          `json:"claims"`
	Repayments    []RepaymentEvent `json:"repayments"`
	Statistics    Statistics       `json:"statistics"`

	Contaminated        bool   `json:"contaminated,omitempty"`
	ContaminationReason string `json:"contamination_reason,omitempty"`
}

// #endregion record

// #region schema
const recordSchemaJSON = `{
  "type": "object",
  "required": ["total_debt", "claims"],
  "properties": {
    "total_debt": {"type": "number", "minimum": 0},
    "debt_decay_rate": {"type": "number", "minimum": 0},
    "contaminated": {"type": "boolean"},
    "contamination_reason": {"type": "string"},
    "forgiveness": {
      "type": "object",
      "properties": {
        "mode": {"enum": ["repayment", "flat_decay"]},
        "decay_rate": {"type": "number", "minimum": 0}
      }
    },
    "claims": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["action_id", "action_type", "claimed_gain_bits"],
        "properties": {
          "action_id": {"type": "string", "minLength": 1},
          "action_type": {"type": "string"},
          "claimed_gain_bits": {"type": "number"},
          "realized_gain_bits": {"type": ["number", "null"]},
          "timestamp": {"type": "string"},
          "prior_modalities": {"type": "array", "items": {"type": "string"}},
          "claimed_marginal_gain": {"type": ["number", "null"]}
        }
      }
    },
    "repayments": {
      "type": ["array", "null"],
      "items": {
        "type": "object",
        "required": ["action_id", "repay_bits"],
        "properties": {
          "action_id": {"type": "string"},
          "repay_bits": {"type": "number", "minimum": 0},
          "reason": {"type": "string"},
          "evidence": {"type": ["object", "null"]}
        }
      }
    }
  }
}`

var recordSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	if err := c.AddResource("ledger_record.json", strings.NewReader(recordSchemaJSON)); err != nil {
		return nil, err
	}
	return c.Compile("ledger_record.json")
})

// #endregion schema

// #region encode
// Record returns the persisted form of the ledger.
func (l *Ledger) Record() Record {
	claims := l.Claims()
	if claims == nil {
		claims = []Claim{}
	}
	repayments := l.Repayments()
	if repayments == nil {
		repayments = []RepaymentEvent{}
	}
	return Record{
		TotalDebt:     l.totalDebt,
		DebtDecayRate: l.forgiveness.DecayRate,
		Forgiveness:   l.forgiveness,
		Claims:        claims,
		Repayments:    repayments,
		Statistics:    l.Statistics(),

		Contaminated:        l.contaminated,
		ContaminationReason: l.contaminationReason,
	}
}

// Encode marshals the ledger record as indented JSON.
func (l *Ledger) Encode() ([]byte, error) {
	return json.MarshalIndent(l.Record(), "", "  ")
}

// Save writes the ledger record to path. I/O errors are returned as is.
func (l *Ledger) Save(path string) error {
	data, err := l.Encode()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// #endregion encode

// #region decode
// Restore rebuilds a ledger from a record.
func Restore(rec Record) (*Ledger, error) {
	forgiveness := rec.Forgiveness
	if forgiveness.Mode == "" {
		forgiveness = ForgivenessFromDecayRate(rec.DebtDecayRate)
	}
	l, err := New(forgiveness)
	if err != nil {
		return nil, err
	}
	for i, c := range rec.Claims {
		if _, exists := l.index[c.ActionID]; exists {
			return nil, fmt.Errorf("restore claim %s: %w", c.ActionID, ErrDuplicateClaim)
		}
		l.index[c.ActionID] = i
	}
	l.claims = append([]Claim(nil), rec.Claims...)
	l.repayments = append([]RepaymentEvent(nil), rec.Repayments...)
	l.totalDebt = max(0, rec.TotalDebt)
	if rec.Contaminated {
		l.MarkContaminated(rec.ContaminationReason)
	}
	return l, nil
}

// Decode validates data against the record schema and restores a ledger.
// Parse and validation errors are returned unwrapped.
func Decode(data []byte) (*Ledger, error) {
	schema, err := recordSchema()
	if err != nil {
		return nil, err
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if err := schema.Validate(doc); err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return Restore(rec)
}

// Load reads and restores a ledger saved with Save.
func Load(path string) (*Ledger, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

// #endregion decode
