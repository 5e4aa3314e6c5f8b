package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/crimescope/internal/core/domain"
	"github.com/samirrijal/crimescope/internal/core/usecases"
)

// boundaryArgs are shared by every query that takes an area.
var boundaryArgs = graphql.FieldConfigArgument{
	"bbox":   &graphql.ArgumentConfig{Type: graphql.String, Description: "south,west,north,east"},
	"poly":   &graphql.ArgumentConfig{Type: graphql.String, Description: "lat,lng:lat,lng:..."},
	"kml":    &graphql.ArgumentConfig{Type: graphql.String, Description: "KML file relative to the boundary directory"},
	"lat":    &graphql.ArgumentConfig{Type: graphql.Float},
	"lng":    &graphql.ArgumentConfig{Type: graphql.Float},
	"radius": &graphql.ArgumentConfig{Type: graphql.Float, Description: "meters around lat/lng, default 1000"},
	"date":   &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String), Description: "YYYY-MM or YYYY-MM..YYYY-MM"},
}

func withArgs(extra graphql.FieldConfigArgument) graphql.FieldConfigArgument {
	out := graphql.FieldConfigArgument{}
	for k, v := range boundaryArgs {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// queryArgs turns resolver arguments into a descriptor and period.
func queryArgs(args map[string]interface{}, kmlEnabled bool) (domain.BoundaryDescriptor, domain.Period, error) {
	var in boundaryInput
	in.BBox, _ = args["bbox"].(string)
	in.Poly, _ = args["poly"].(string)
	in.KML, _ = args["kml"].(string)
	if v, ok := args["lat"].(float64); ok {
		in.Lat = &v
	}
	if v, ok := args["lng"].(float64); ok {
		in.Lng = &v
	}
	if v, ok := args["radius"].(float64); ok {
		in.Radius = v
	}

	desc, err := in.descriptor(kmlEnabled)
	if err != nil {
		return domain.BoundaryDescriptor{}, domain.Period{}, err
	}
	date, _ := args["date"].(string)
	period, err := parsePeriod(date)
	if err != nil {
		return domain.BoundaryDescriptor{}, domain.Period{}, err
	}
	return desc, period, nil
}

// buildSchema creates the GraphQL schema wired to the crime service.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	boundsType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Bounds",
		Fields: graphql.Fields{
			"min_lat": &graphql.Field{Type: graphql.Float},
			"min_lon": &graphql.Field{Type: graphql.Float},
			"max_lat": &graphql.Field{Type: graphql.Float},
			"max_lon": &graphql.Field{Type: graphql.Float},
		},
	})

	crimeType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Crime",
		Fields: graphql.Fields{
			"category":      &graphql.Field{Type: graphql.String},
			"latitude":      &graphql.Field{Type: graphql.Float},
			"longitude":     &graphql.Field{Type: graphql.Float},
			"month":         &graphql.Field{Type: graphql.String},
			"street_id":     &graphql.Field{Type: graphql.Int},
			"street_name":   &graphql.Field{Type: graphql.String},
			"outcome":       &graphql.Field{Type: graphql.String},
			"id":            &graphql.Field{Type: graphql.Int},
			"persistent_id": &graphql.Field{Type: graphql.String},
			"location_type": &graphql.Field{Type: graphql.String},
		},
	})

	segmentType := graphql.NewObject(graphql.ObjectConfig{
		Name: "SegmentReport",
		Fields: graphql.Fields{
			"month":  &graphql.Field{Type: graphql.String},
			"bounds": &graphql.Field{Type: boundsType},
			"depth":  &graphql.Field{Type: graphql.Int},
			"status": &graphql.Field{Type: graphql.Int},
			"reason": &graphql.Field{Type: graphql.String},
		},
	})

	coverageType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Coverage",
		Fields: graphql.Fields{
			"complete":  &graphql.Field{Type: graphql.Boolean},
			"abandoned": &graphql.Field{Type: graphql.NewList(segmentType)},
			"failed":    &graphql.Field{Type: graphql.NewList(segmentType)},
		},
	})

	resultType := graphql.NewObject(graphql.ObjectConfig{
		Name: "CrimeResult",
		Fields: graphql.Fields{
			"key":            &graphql.Field{Type: graphql.String},
			"period":         &graphql.Field{Type: graphql.String},
			"bounds":         &graphql.Field{Type: boundsType},
			"from_cache":     &graphql.Field{Type: graphql.Boolean},
			"fetched_at":     &graphql.Field{Type: graphql.DateTime},
			"upstream_calls": &graphql.Field{Type: graphql.Int},
			"coverage":       &graphql.Field{Type: coverageType},
			"count": &graphql.Field{
				Type: graphql.Int,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return len(p.Source.(*domain.FetchResult).Records), nil
				},
			},
			"records": &graphql.Field{Type: graphql.NewList(crimeType)},
		},
	})

	statusType := graphql.NewObject(graphql.ObjectConfig{
		Name: "CacheStatus",
		Fields: graphql.Fields{
			"key":    &graphql.Field{Type: graphql.String},
			"period": &graphql.Field{Type: graphql.String},
			"cached": &graphql.Field{Type: graphql.Boolean},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"crimes": &graphql.Field{
				Type:        resultType,
				Description: "Street-level crimes inside an area for a month or range",
				Args: withArgs(graphql.FieldConfigArgument{
					"refresh": &graphql.ArgumentConfig{Type: graphql.Boolean, DefaultValue: false},
				}),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					desc, period, err := queryArgs(p.Args, deps.KMLEnabled)
					if err != nil {
						return nil, err
					}
					refresh, _ := p.Args["refresh"].(bool)
					return deps.Crimes.Fetch(p.Context, desc, period, usecases.FetchOptions{ForceRefresh: refresh})
				},
			},
			"cached": &graphql.Field{
				Type:        statusType,
				Description: "Whether a query is already cached",
				Args:        withArgs(nil),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					desc, period, err := queryArgs(p.Args, deps.KMLEnabled)
					if err != nil {
						return nil, err
					}
					key, cached, err := deps.Crimes.Cached(p.Context, desc, period)
					if err != nil {
						return nil, err
					}
					return CrimeStatusResponse{Key: key, Period: period.Label(), Cached: cached}, nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		c.Set(fiber.HeaderCacheControl, "private, max-age=0")
		return c.JSON(result)
	}
}
