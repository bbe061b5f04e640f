package document

import (
	"fmt"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
)

// TranslateError reports a user query token that could not be turned into a
// predicate, typically a non-numeric value against a number field.
type TranslateError struct {
	Token string
	Field string
}

func (e *TranslateError) Error() string {
	return fmt.Sprintf("bad query token %q: field %q expects a number", e.Token, e.Field)
}

// Translate turns the ordered list of user search tokens into a backend
// predicate. "field:value" tokens become field predicates (numeric equality
// after coercion, case-insensitive substring otherwise); bare tokens are
// concatenated into a single full-text search. Field predicates and the text
// predicate combine with logical AND at the top level.
func Translate(k *Kind, tokens []string) (bson.M, error) {
	query := bson.M{}
	var free []string
	for _, token := range tokens {
		field, value, ok := strings.Cut(token, ":")
		if !ok {
			free = append(free, token)
			continue
		}
		pred, err := fieldPredicate(k, token, field, value)
		if err != nil {
			return nil, err
		}
		query[field] = pred
	}
	if len(free) > 0 {
		query["$text"] = bson.M{"$search": strings.Join(free, " ")}
	}
	return query, nil
}

func fieldPredicate(k *Kind, token, field, value string) (bson.M, error) {
	prop, declared := k.Schema.Properties[field]
	if !declared {
		return bson.M{"$eq": value}, nil
	}
	if prop.Type == "number" {
		n, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, &TranslateError{Token: token, Field: field}
		}
		return bson.M{"$eq": n}, nil
	}
	return bson.M{"$regex": value, "$options": "i"}, nil
}
