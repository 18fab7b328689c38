package rpc

import (
	"errors"
	"fmt"
)

type Method string

const (
	MethodExtractKeywords Method = "extract_keywords"
	MethodRecommend       Method = "recommend"
	MethodAdd             Method = "add"
	MethodUpdate          Method = "update"
	MethodDelete          Method = "delete"
)

var ErrNoMethod = errors.New("No method specified")

// Methods lists every method the dispatcher serves.
var Methods = []Method{MethodExtractKeywords, MethodRecommend, MethodAdd, MethodUpdate, MethodDelete}

var arity = map[Method]int{
	MethodExtractKeywords: 1,
	MethodRecommend:       1,
	MethodAdd:             2,
	MethodUpdate:          2,
	MethodDelete:          1,
}

type UnknownMethodError struct {
	Name string
}

func (e *UnknownMethodError) Error() string {
	return fmt.Sprintf("Method not found: %s", e.Name)
}

func ParseMethod(name string) (Method, error) {
	if name == "" {
		return "", ErrNoMethod
	}
	m := Method(name)
	if _, ok := arity[m]; !ok {
		return "", &UnknownMethodError{Name: name}
	}
	return m, nil
}

// Arity is the number of positional arguments the method takes.
func (m Method) Arity() int {
	return arity[m]
}

func (m Method) checkArgs(args []string) error {
	if n := m.Arity(); len(args) != n {
		return fmt.Errorf("%s expects %d argument(s), got %d", m, n, len(args))
	}
	return nil
}
