package invoke

import "encoding/json"

// Serializer is the collaborator that turns call arguments into an opaque
// payload and a provider response back into a user result. The core never
// inspects payload bytes itself.
type Serializer interface {
	Serialize(args any) ([]byte, error)
	Deserialize(data []byte, out any) error
}

// JSONSerializer is the default Serializer, sufficient for any
// JSON-marshalable argument/result pair.
type JSONSerializer struct{}

func (JSONSerializer) Serialize(args any) ([]byte, error) { return json.Marshal(args) }

func (JSONSerializer) Deserialize(data []byte, out any) error {
	if out == nil || len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}
