package domain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Param is one ABI argument.
type Param struct {
	Name    string
	Type    string
	Indexed bool
}

// MethodDescriptor is the invocation shape of a contract method resolved at bind time.
type MethodDescriptor struct {
	Name      string
	Signature string
	Selector  [4]byte
	Inputs    []Param
	Outputs   []Param
	ReadOnly  bool
	Payable   bool
}

// EventDescriptor is the shape of a contract event resolved at bind time.
type EventDescriptor struct {
	Name      string
	Signature string
	Topic     common.Hash
	Inputs    []Param
	Anonymous bool
}

// NewMethodDescriptor converts a parsed ABI method.
func NewMethodDescriptor(m abi.Method) MethodDescriptor {
	d := MethodDescriptor{
		Name:      m.Name,
		Signature: m.Sig,
		Inputs:    params(m.Inputs),
		Outputs:   params(m.Outputs),
		ReadOnly:  m.IsConstant(),
		Payable:   m.IsPayable(),
	}
	copy(d.Selector[:], m.ID)
	return d
}

// NewEventDescriptor converts a parsed ABI event.
func NewEventDescriptor(e abi.Event) EventDescriptor {
	return EventDescriptor{
		Name:      e.Name,
		Signature: e.Sig,
		Topic:     e.ID,
		Inputs:    params(e.Inputs),
		Anonymous: e.Anonymous,
	}
}

// String renders "transfer(address to, uint256 amount) returns (bool)".
func (m MethodDescriptor) String() string {
	var sb strings.Builder
	sb.WriteString(m.Name)
	sb.WriteString("(")
	sb.WriteString(joinParams(m.Inputs))
	sb.WriteString(")")
	if len(m.Outputs) > 0 {
		sb.WriteString(" returns (")
		sb.WriteString(joinParams(m.Outputs))
		sb.WriteString(")")
	}
	return sb.String()
}

// String renders "Transfer(address indexed from, address indexed to, uint256 value)".
func (e EventDescriptor) String() string {
	return e.Name + "(" + joinParams(e.Inputs) + ")"
}

func params(args abi.Arguments) []Param {
	out := make([]Param, len(args))
	for i, a := range args {
		out[i] = Param{Name: a.Name, Type: a.Type.String(), Indexed: a.Indexed}
	}
	return out
}

func joinParams(ps []Param) string {
	parts := make([]string, len(ps))
	for i, p := range ps {
		s := p.Type
		if p.Indexed {
			s += " indexed"
		}
		if p.Name != "" {
			s += " " + p.Name
		}
		parts[i] = s
	}
	return strings.Join(parts, ", ")
}
