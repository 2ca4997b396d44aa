package model

import (
	"fmt"
	"math"

	"github.com/shrubheight/cvtune/pkg/errors"
)

// Clone はFactoryから新しいインスタンスを作成し、paramsを適用する。
// scikit-learnのclone + set_paramsに相当する。
func Clone(factory Factory, params map[string]interface{}) (Estimator, error) {
	est := factory()
	if len(params) == 0 {
		return est, nil
	}
	if err := est.SetParams(params); err != nil {
		return nil, err
	}
	return est, nil
}

// IntParam はハイパーパラメータ値をintに変換する。
// サンプリングされた値はint、設定ファイル由来の値はfloat64になり得る。
func IntParam(name string, v interface{}) (int, error) {
	switch x := v.(type) {
	case int:
		return x, nil
	case int32:
		return int(x), nil
	case int64:
		return int(x), nil
	case float64:
		if x != math.Trunc(x) {
			return 0, errors.NewValidationError(name, "must be an integer", v)
		}
		return int(x), nil
	default:
		return 0, errors.NewValidationError(name, fmt.Sprintf("unsupported type %T", v), v)
	}
}

// FloatParam はハイパーパラメータ値をfloat64に変換する。
func FloatParam(name string, v interface{}) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	default:
		return 0, errors.NewValidationError(name, fmt.Sprintf("unsupported type %T", v), v)
	}
}

// UnknownParam は未知のパラメータ名に対するエラーを返す。
func UnknownParam(model, name string) error {
	return errors.NewValidationError(name, "unknown parameter for "+model, name)
}
