package di

// Mapping rewrites entry names before they are bound in a scope.
type Mapping func(string) string

// Identity is the Mapping that leaves names untouched.
func Identity(name string) string {
	return name
}

// Entry is something a middleware or handler can hand back to be bound in
// the request scope. It is implemented by Value and Factory only.
type Entry interface {
	EntryName() string
	isEntry()
}

// Value binds a constant.
type Value struct {
	Name  string
	Value any
}

// EntryName returns the name the value is bound under.
func (v Value) EntryName() string { return v.Name }
func (Value) isEntry()            {}

// Factory binds a computed value.
type Factory struct {
	Name   string
	Params []Param
	Fn     Func
	Policy Policy
}

// EntryName returns the name the factory is bound under.
func (f Factory) EntryName() string { return f.Name }
func (Factory) isEntry()            {}

// Entries is a convenience constructor for returning several entries from a
// stage.
func Entries(entries ...Entry) []Entry {
	return entries
}
