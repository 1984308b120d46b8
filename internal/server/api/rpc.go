package api

import (
	"encoding/json"

	"github.com/dmitrijs2005/credkeeper/internal/server/validation"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// CodecName is the gRPC content-subtype under which the DTOs of this
// package travel. Clients select it with grpc.CallContentSubtype.
const CodecName = "json"

// AuthServiceName is the fully qualified gRPC service name.
const AuthServiceName = "credkeeper.v1.AuthService"

// Method names of AuthService.
const (
	MethodRegister       = "Register"
	MethodLogin          = "Login"
	MethodGetProfile     = "GetProfile"
	MethodUpdateProfile  = "UpdateProfile"
	MethodChangePassword = "ChangePassword"
	MethodLogout         = "Logout"
	MethodRefreshToken   = "RefreshToken"
	MethodStatus         = "Status"
)

// FullMethod returns the "/service/method" path of an AuthService method.
func FullMethod(method string) string {
	return "/" + AuthServiceName + "/" + method
}

// Codec marshals gRPC messages as JSON. Protobuf messages, such as those
// of the health service, go through protojson.
type Codec struct{}

func (Codec) Marshal(v any) ([]byte, error) {
	if m, ok := v.(proto.Message); ok {
		return protojson.Marshal(m)
	}
	return json.Marshal(v)
}

func (Codec) Unmarshal(data []byte, v any) error {
	if m, ok := v.(proto.Message); ok {
		return protojson.Unmarshal(data, m)
	}
	return json.Unmarshal(data, v)
}

func (Codec) Name() string {
	return CodecName
}

func init() {
	encoding.RegisterCodec(Codec{})
}

// FieldErrors recovers the field map from the BadRequest details of a
// gRPC status. It returns nil when err carries none.
func FieldErrors(err error) validation.FieldErrors {
	st, ok := status.FromError(err)
	if !ok {
		return nil
	}

	var fe validation.FieldErrors
	for _, d := range st.Details() {
		br, ok := d.(*errdetails.BadRequest)
		if !ok {
			continue
		}
		if fe == nil {
			fe = validation.FieldErrors{}
		}
		for _, v := range br.GetFieldViolations() {
			fe.Add(v.GetField(), v.GetDescription())
		}
	}
	return fe
}
