package domain

import (
	"fmt"
	"math/big"
	"reflect"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/fd1az/chainkit/internal/apperror"
)

// ParseArgs converts command-line strings into values the ABI packer accepts
// for params. Tuples and arrays are not supported.
func ParseArgs(params []Param, raw []string) ([]any, error) {
	if len(params) != len(raw) {
		return nil, apperror.New(apperror.CodeInvalidInput,
			apperror.WithContext(fmt.Sprintf("expected %d arguments, got %d", len(params), len(raw))))
	}

	args := make([]any, len(raw))
	for i, p := range params {
		v, err := ParseArg(p.Type, raw[i])
		if err != nil {
			return nil, apperror.New(apperror.CodeInvalidInput,
				apperror.WithCause(err),
				apperror.WithContext(fmt.Sprintf("argument %d (%s %s)", i, p.Type, p.Name)))
		}
		args[i] = v
	}
	return args, nil
}

// ParseArg converts s to the Go type the ABI packer expects for typ.
func ParseArg(typ, s string) (any, error) {
	switch {
	case typ == "address":
		if !common.IsHexAddress(s) {
			return nil, fmt.Errorf("invalid address %q", s)
		}
		return common.HexToAddress(s), nil
	case typ == "bool":
		return strconv.ParseBool(s)
	case typ == "string":
		return s, nil
	case typ == "bytes":
		return hexutil.Decode(s)
	case strings.HasPrefix(typ, "bytes"):
		return parseFixedBytes(typ, s)
	case strings.HasPrefix(typ, "uint"):
		return parseInt(typ[len("uint"):], s, false)
	case strings.HasPrefix(typ, "int"):
		return parseInt(typ[len("int"):], s, true)
	default:
		return nil, fmt.Errorf("unsupported type %q", typ)
	}
}

func parseFixedBytes(typ, s string) (any, error) {
	n, err := strconv.Atoi(typ[len("bytes"):])
	if err != nil || n < 1 || n > 32 {
		return nil, fmt.Errorf("unsupported type %q", typ)
	}
	b, err := hexutil.Decode(s)
	if err != nil {
		return nil, err
	}
	if len(b) > n {
		return nil, fmt.Errorf("%d bytes do not fit %s", len(b), typ)
	}
	arr := reflect.New(reflect.ArrayOf(n, reflect.TypeOf(byte(0)))).Elem()
	reflect.Copy(arr, reflect.ValueOf(b))
	return arr.Interface(), nil
}

// parseInt returns the sized Go integer for 8 to 64 bit types and *big.Int
// above, matching the packer's type mapping.
func parseInt(bits, s string, signed bool) (any, error) {
	size := 256
	if bits != "" {
		n, err := strconv.Atoi(bits)
		if err != nil || n < 8 || n > 256 || n%8 != 0 {
			return nil, fmt.Errorf("invalid integer size %q", bits)
		}
		size = n
	}

	v, ok := new(big.Int).SetString(s, 0)
	if !ok {
		return nil, fmt.Errorf("invalid integer %q", s)
	}
	if !signed && v.Sign() < 0 {
		return nil, fmt.Errorf("negative value %s for unsigned type", s)
	}
	limit, mag := size, v
	if signed {
		limit--
		if v.Sign() < 0 {
			// two's complement admits one more negative value
			mag = new(big.Int).Add(v, big.NewInt(1))
		}
	}
	if mag.BitLen() > limit {
		return nil, fmt.Errorf("%s overflows %d bits", s, size)
	}

	switch {
	case size > 64:
		return v, nil
	case signed:
		i := v.Int64()
		switch size {
		case 8:
			return int8(i), nil
		case 16:
			return int16(i), nil
		case 32:
			return int32(i), nil
		case 64:
			return i, nil
		}
	default:
		u := v.Uint64()
		switch size {
		case 8:
			return uint8(u), nil
		case 16:
			return uint16(u), nil
		case 32:
			return uint32(u), nil
		case 64:
			return u, nil
		}
	}
	// 24, 40, 48, 56 bit integers pack as *big.Int
	return v, nil
}
