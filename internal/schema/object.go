package schema

// Object is a validated JSON object. Values have already been checked and
// coerced against the declared fields, so getters never fail; an absent
// optional field yields the zero value.
type Object struct {
	values map[string]any
}

func (o *Object) Has(name string) bool {
	if o == nil {
		return false
	}
	_, ok := o.values[name]
	return ok
}

func (o *Object) String(name string) string {
	s, _ := o.get(name).(string)
	return s
}

func (o *Object) Int(name string) int {
	n, _ := o.get(name).(int)
	return n
}

func (o *Object) Float(name string) float64 {
	f, _ := o.get(name).(float64)
	return f
}

func (o *Object) Bool(name string) bool {
	b, _ := o.get(name).(bool)
	return b
}

func (o *Object) Object(name string) *Object {
	obj, _ := o.get(name).(*Object)
	if obj == nil {
		return &Object{}
	}
	return obj
}

func (o *Object) Strings(name string) []string {
	items, _ := o.get(name).([]any)
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, _ := item.(string)
		out = append(out, s)
	}
	return out
}

func (o *Object) Floats(name string) []float64 {
	items, _ := o.get(name).([]any)
	out := make([]float64, 0, len(items))
	for _, item := range items {
		f, _ := item.(float64)
		out = append(out, f)
	}
	return out
}

func (o *Object) Objects(name string) []*Object {
	items, _ := o.get(name).([]any)
	out := make([]*Object, 0, len(items))
	for _, item := range items {
		obj, _ := item.(*Object)
		if obj == nil {
			obj = &Object{}
		}
		out = append(out, obj)
	}
	return out
}

func (o *Object) get(name string) any {
	if o == nil {
		return nil
	}
	return o.values[name]
}
