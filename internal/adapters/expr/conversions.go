package expr

import (
	"reflect"

	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/common/types/traits"
	"go.trai.ch/mallard/internal/core/domain"
	"go.trai.ch/zerr"
)

// ErrUnsupportedType is returned when a CEL value has no Go equivalent that can be cached.
var ErrUnsupportedType = zerr.New("unsupported CEL type")

// GoNativeType converts a CEL value into the Go value stored in the cache.
// Lists become []any and maps become map[string]any.
func GoNativeType(v ref.Val) (any, error) {
	switch v.Type() {
	case types.BoolType:
		return v.Value().(bool), nil
	case types.IntType:
		return v.Value().(int64), nil
	case types.UintType:
		return v.Value().(uint64), nil
	case types.DoubleType:
		return v.Value().(float64), nil
	case types.StringType:
		return v.Value().(string), nil
	case types.BytesType:
		return v.Value().([]byte), nil
	case types.ListType:
		return convertList(v)
	case types.MapType:
		return convertMap(v)
	case types.OptionalType:
		opt := v.(*types.Optional)
		if !opt.HasValue() {
			return nil, nil
		}
		return GoNativeType(opt.GetValue())
	case types.NullType:
		return nil, nil
	default:
		return v.Value(), domain.Detail(ErrUnsupportedType, "type", v.Type().TypeName())
	}
}

func convertList(v ref.Val) (any, error) {
	lister, ok := v.(traits.Lister)
	if !ok {
		return v.ConvertToNative(reflect.TypeOf([]any{}))
	}
	result := make([]any, 0)
	it := lister.Iterator()
	for it.HasNext() == types.True {
		native, err := GoNativeType(it.Next())
		if err != nil {
			return nil, err
		}
		result = append(result, native)
	}
	return result, nil
}

func convertMap(v ref.Val) (any, error) {
	mapper, ok := v.(traits.Mapper)
	if !ok {
		return v.ConvertToNative(reflect.TypeOf(map[string]any{}))
	}
	result := make(map[string]any)
	it := mapper.Iterator()
	for it.HasNext() == types.True {
		key := it.Next()
		native, err := GoNativeType(mapper.Get(key))
		if err != nil {
			return nil, err
		}
		k, ok := key.Value().(string)
		if !ok {
			return nil, domain.Detail(ErrUnsupportedType, "map_key", key.Type().TypeName())
		}
		result[k] = native
	}
	return result, nil
}
