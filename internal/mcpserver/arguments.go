package mcpserver

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"

	"github.com/ca-srg/yelpmcp/internal/aggregator"
	"github.com/ca-srg/yelpmcp/internal/yelpapi"
)

// errMalformedArguments marks argument payloads that are not a JSON object.
// They surface as protocol errors rather than tool errors.
var errMalformedArguments = errors.New("malformed tool arguments")

// Required fields are pointers so that presence, not emptiness, is checked.

type searchArgs struct {
	Location            *string `json:"location" validate:"required"`
	SearchTerm          *string `json:"search_term" validate:"required"`
	Limit               *int    `json:"limit,omitempty" validate:"omitempty,min=1,max=40"`
	Offset              *int    `json:"offset,omitempty" validate:"omitempty,min=0"`
	BusinessDetailsType *string `json:"business_details_type,omitempty" validate:"omitempty,oneof=basic advanced"`
}

func (a *searchArgs) request() yelpapi.SearchRequest {
	return yelpapi.SearchRequest{
		Location:            *a.Location,
		SearchTerm:          *a.SearchTerm,
		Limit:               a.Limit,
		Offset:              a.Offset,
		BusinessDetailsType: a.BusinessDetailsType,
	}
}

type businessDetailsArgs struct {
	BusinessURL *string `json:"business_url,omitempty"`
	BusinessIDs *string `json:"business_ids,omitempty"`
}

type reviewsArgs struct {
	BusinessURL    *string `json:"business_url,omitempty"`
	BusinessID     *string `json:"business_id,omitempty"`
	ReviewsPerPage *int    `json:"reviews_per_page,omitempty" validate:"omitempty,min=1,max=45"`
	EndCursor      *string `json:"end_cursor,omitempty"`
	SortBy         *string `json:"sort_by,omitempty" validate:"omitempty,oneof=Yelp_sort Newest_first Oldest_first Highest_rated Lowest_rated Elites"`
	RatingFilter   *string `json:"rating_filter,omitempty" validate:"omitempty,oneof=All_ratings 5_stars 4_stars 3_stars 2_stars 1_star"`
}

type businessIDArgs struct {
	BusinessID *string `json:"business_id" validate:"required"`
}

type businessURLArgs struct {
	BusinessURL *string `json:"business_url" validate:"required"`
}

type upcheckArgs struct {
	Check *string `json:"check" validate:"required"`
}

type fullListArgs struct {
	Location            *string `json:"location" validate:"required"`
	SearchTerm          *string `json:"search_term" validate:"required"`
	StartPage           *int    `json:"start_page,omitempty" validate:"omitempty,min=1"`
	EndPage             *int    `json:"end_page,omitempty" validate:"omitempty,min=1"`
	Limit               *int    `json:"limit,omitempty" validate:"omitempty,min=1,max=40"`
	BusinessDetailsType *string `json:"business_details_type,omitempty" validate:"omitempty,oneof=basic advanced"`
}

func (a *fullListArgs) request() aggregator.Request {
	return aggregator.Request{
		Location:            *a.Location,
		SearchTerm:          *a.SearchTerm,
		StartPage:           a.StartPage,
		EndPage:             a.EndPage,
		Limit:               a.Limit,
		BusinessDetailsType: a.BusinessDetailsType,
	}
}

func newArgumentValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeArguments unmarshals raw into dst and validates it. Wrong value types
// and validation failures are invalid arguments; a payload that is not a JSON
// object is malformed.
func decodeArguments(v *validator.Validate, raw json.RawMessage, dst any) error {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed != "" && trimmed != "null" {
		if err := json.Unmarshal(raw, dst); err != nil {
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &typeErr) && typeErr.Field != "" {
				return yelpapi.InvalidArgumentf("invalid arguments: %s must be %s, got %s", typeErr.Field, jsonTypeName(typeErr.Type), typeErr.Value)
			}
			return errors.Mark(errors.Wrap(err, "arguments must be a JSON object"), errMalformedArguments)
		}
	}

	if err := v.Struct(dst); err != nil {
		return describeValidation(err)
	}
	return nil
}

func describeValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return yelpapi.InvalidArgumentf("invalid arguments: %v", err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", fe.Field()))
		case "min":
			msgs = append(msgs, fmt.Sprintf("%s must be >= %s", fe.Field(), fe.Param()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be <= %s", fe.Field(), fe.Param()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of [%s]", fe.Field(), strings.ReplaceAll(fe.Param(), " ", ", ")))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag()))
		}
	}
	return yelpapi.InvalidArgumentf("invalid arguments: %s", strings.Join(msgs, "; "))
}

func jsonTypeName(t reflect.Type) string {
	if t == nil {
		return "valid"
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return "an integer"
	case reflect.String:
		return "a string"
	case reflect.Struct, reflect.Map:
		return "an object"
	default:
		return t.String()
	}
}
