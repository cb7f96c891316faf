package auth

import "net/url"

// callbackParams はコールバックのクエリパラメータ。
type callbackParams struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
}

// callbackParamLimits は受け付けるパラメータと最大長。これ以外のキーは無視する。
var callbackParamLimits = map[string]int{
	"code":              512,
	"state":             256,
	"error":             128,
	"error_description": 1024,
	"cid":               128,
}

// parseCallbackQuery は生のクエリ文字列を解析して検証する。
// エスケープが不正な場合、既知のパラメータが複数回指定された場合、長さ上限を超えた場合はfalseを返す。
// 値が空であることはここでは判定せず、後段で理由を区別して扱う。
func parseCallbackQuery(rawQuery string) (callbackParams, bool) {
	query, err := url.ParseQuery(rawQuery)
	if err != nil {
		return callbackParams{}, false
	}
	for key, limit := range callbackParamLimits {
		values, ok := query[key]
		if !ok {
			continue
		}
		if len(values) != 1 || len(values[0]) > limit {
			return callbackParams{}, false
		}
	}
	return callbackParams{
		Code:             query.Get("code"),
		State:            query.Get("state"),
		Error:            query.Get("error"),
		ErrorDescription: query.Get("error_description"),
	}, true
}
