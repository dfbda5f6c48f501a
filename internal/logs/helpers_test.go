package logs_test

import jsoniter "github.com/json-iterator/go"

func jsonDecode(line string, v any) error {
	return jsoniter.ConfigCompatibleWithStandardLibrary.UnmarshalFromString(line, v)
}
