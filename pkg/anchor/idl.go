package anchor

import (
	"encoding/json"
	"strconv"
	"strings"
	"unicode"

	"github.com/pkg/errors"
)

// Format identifies which IDL schema a document was written in.
type Format int

const (
	// FormatLegacy is the pre-0.30 schema (isMut/isSigner, publicKey).
	FormatLegacy Format = iota
	// Format030 is the 0.30+ schema (writable/signer, pubkey, explicit
	// discriminators).
	Format030
)

// IDL is a program interface description, normalized across formats.
// Instruction and account names keep their original spelling; lookups
// go through Normalize.
type IDL struct {
	Address      string
	Name         string
	Version      string
	Format       Format
	Instructions []IDLInstruction
	Accounts     []IDLAccountDef
	Errors       []IDLError
}

type IDLInstruction struct {
	Name          string
	Discriminator []byte
	Accounts      []IDLAccountItem
	Args          []IDLField
}

// IDLAccountItem is one account an instruction expects. Composite account
// groups are flattened in declaration order.
type IDLAccountItem struct {
	Name     string
	Writable bool
	Signer   bool
	Optional bool
	// Address is set when the IDL pins the account to a fixed address.
	Address string
}

type IDLAccountDef struct {
	Name          string
	Discriminator []byte
}

type IDLField struct {
	Name string  `json:"name"`
	Type IDLType `json:"type"`
}

type IDLError struct {
	Code uint32 `json:"code"`
	Name string `json:"name"`
	Msg  string `json:"msg"`
}

// IDLType is a borsh type as described in an IDL. Kind is either a
// primitive name ("u8", "pubkey", ...) or one of "option", "vec", "array"
// and "defined".
type IDLType struct {
	Kind    string
	Elem    *IDLType
	Len     int
	Defined string
}

const (
	kindOption  = "option"
	kindVec     = "vec"
	kindArray   = "array"
	kindDefined = "defined"
)

func (t *IDLType) UnmarshalJSON(b []byte) error {
	var primitive string
	if err := json.Unmarshal(b, &primitive); err == nil {
		t.Kind = primitive
		if primitive == "publicKey" {
			t.Kind = "pubkey"
		}
		return nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(b, &obj); err != nil {
		return errors.Wrap(err, "invalid idl type")
	}
	if len(obj) != 1 {
		return errors.Errorf("invalid idl type: %s", string(b))
	}

	for k, v := range obj {
		switch k {
		case kindOption, "coption", kindVec:
			t.Kind = k
			if k == "coption" {
				t.Kind = kindOption
			}
			t.Elem = &IDLType{}
			return json.Unmarshal(v, t.Elem)
		case kindArray:
			var tuple []json.RawMessage
			if err := json.Unmarshal(v, &tuple); err != nil || len(tuple) != 2 {
				return errors.Errorf("invalid array type: %s", string(v))
			}
			t.Kind = kindArray
			t.Elem = &IDLType{}
			if err := json.Unmarshal(tuple[0], t.Elem); err != nil {
				return err
			}
			if err := json.Unmarshal(tuple[1], &t.Len); err != nil {
				return errors.Errorf("unsupported array length: %s", string(tuple[1]))
			}
			return nil
		case kindDefined:
			t.Kind = kindDefined
			if err := json.Unmarshal(v, &t.Defined); err == nil {
				return nil
			}
			var named struct {
				Name string `json:"name"`
			}
			if err := json.Unmarshal(v, &named); err != nil {
				return errors.Errorf("invalid defined type: %s", string(v))
			}
			t.Defined = named.Name
			return nil
		default:
			return errors.Errorf("unsupported idl type: %s", k)
		}
	}

	return nil
}

func (t IDLType) String() string {
	switch t.Kind {
	case kindOption, kindVec:
		return t.Kind + "<" + t.Elem.String() + ">"
	case kindArray:
		return "[" + t.Elem.String() + "; " + strconv.Itoa(t.Len) + "]"
	case kindDefined:
		return t.Defined
	default:
		return t.Kind
	}
}

type rawIDL struct {
	Address  string `json:"address"`
	Name     string `json:"name"`
	Version  string `json:"version"`
	Metadata *struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"metadata"`
	Instructions []struct {
		Name          string           `json:"name"`
		Discriminator []int            `json:"discriminator"`
		Accounts      []rawAccountItem `json:"accounts"`
		Args          []IDLField       `json:"args"`
	} `json:"instructions"`
	Accounts []struct {
		Name          string `json:"name"`
		Discriminator []int  `json:"discriminator"`
	} `json:"accounts"`
	Errors []IDLError `json:"errors"`
}

type rawAccountItem struct {
	Name string `json:"name"`

	// legacy
	IsMut      bool `json:"isMut"`
	IsSigner   bool `json:"isSigner"`
	IsOptional bool `json:"isOptional"`

	// 0.30
	Writable bool   `json:"writable"`
	Signer   bool   `json:"signer"`
	Optional bool   `json:"optional"`
	Address  string `json:"address"`

	Accounts []rawAccountItem `json:"accounts"`
}

// ParseIDL decodes an IDL document in either format.
func ParseIDL(b []byte) (*IDL, error) {
	var raw rawIDL
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, errors.Wrap(err, "invalid idl json")
	}

	idl := &IDL{
		Address: raw.Address,
		Name:    raw.Name,
		Version: raw.Version,
		Errors:  raw.Errors,
	}
	if raw.Metadata != nil {
		idl.Format = Format030
		idl.Name = raw.Metadata.Name
		idl.Version = raw.Metadata.Version
	}

	for _, ri := range raw.Instructions {
		if len(ri.Discriminator) > 0 {
			idl.Format = Format030
		}

		disc, err := toBytes(ri.Discriminator)
		if err != nil {
			return nil, errors.Wrapf(err, "instruction %s", ri.Name)
		}
		if len(disc) == 0 {
			disc = InstructionDiscriminator(ri.Name)
		}

		instruction := IDLInstruction{
			Name:          ri.Name,
			Discriminator: disc,
			Args:          ri.Args,
		}
		flattenAccounts(ri.Accounts, &instruction.Accounts)

		idl.Instructions = append(idl.Instructions, instruction)
	}

	for _, ra := range raw.Accounts {
		disc, err := toBytes(ra.Discriminator)
		if err != nil {
			return nil, errors.Wrapf(err, "account %s", ra.Name)
		}
		if len(disc) == 0 {
			disc = AccountDiscriminator(ra.Name)
		}

		idl.Accounts = append(idl.Accounts, IDLAccountDef{
			Name:          ra.Name,
			Discriminator: disc,
		})
	}

	return idl, nil
}

func flattenAccounts(items []rawAccountItem, out *[]IDLAccountItem) {
	for _, item := range items {
		if len(item.Accounts) > 0 {
			flattenAccounts(item.Accounts, out)
			continue
		}

		*out = append(*out, IDLAccountItem{
			Name:     item.Name,
			Writable: item.IsMut || item.Writable,
			Signer:   item.IsSigner || item.Signer,
			Optional: item.IsOptional || item.Optional,
			Address:  item.Address,
		})
	}
}

// Instruction returns the named instruction. Names match regardless of
// camelCase or snake_case spelling.
func (idl *IDL) Instruction(name string) (*IDLInstruction, bool) {
	want := Normalize(name)
	for i := range idl.Instructions {
		if Normalize(idl.Instructions[i].Name) == want {
			return &idl.Instructions[i], true
		}
	}
	return nil, false
}

// Account returns the named account definition.
func (idl *IDL) Account(name string) (*IDLAccountDef, bool) {
	for i := range idl.Accounts {
		if idl.Accounts[i].Name == name || Normalize(idl.Accounts[i].Name) == Normalize(name) {
			return &idl.Accounts[i], true
		}
	}
	return nil, false
}

// Normalize converts camelCase or PascalCase names to snake_case.
func Normalize(name string) string {
	var sb strings.Builder
	for i, r := range name {
		if unicode.IsUpper(r) {
			if i > 0 && name[i-1] != '_' {
				sb.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func toBytes(values []int) ([]byte, error) {
	if len(values) == 0 {
		return nil, nil
	}

	b := make([]byte, len(values))
	for i, v := range values {
		if v < 0 || v > 255 {
			return nil, errors.Errorf("discriminator byte out of range: %d", v)
		}
		b[i] = byte(v)
	}
	return b, nil
}
