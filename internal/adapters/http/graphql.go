package http

import (
	"math"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/magvar/internal/core/domain"
)

// floatList converts a GraphQL list argument into a sample slice. Null
// elements become NaN, the pipeline's missing-sample marker.
func floatList(v interface{}) []float64 {
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]float64, 0, len(items))
	for _, it := range items {
		f, ok := it.(float64)
		if !ok {
			f = math.NaN()
		}
		out = append(out, f)
	}
	return out
}

// gqlFloat hides NaN/Inf from the JSON-bound GraphQL response.
func gqlFloat(f float64) interface{} {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return f
}

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lon": &graphql.Field{Type: graphql.Float},
		},
	})

	deploymentType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Deployment",
		Fields: graphql.Fields{
			"id":              &graphql.Field{Type: graphql.String},
			"platform_code":   &graphql.Field{Type: graphql.String},
			"instrument_kind": &graphql.Field{Type: graphql.String},
			"site":            &graphql.Field{Type: geoPointType},
			"nominal_depth_m": &graphql.Field{Type: graphql.Float},
			"orientation":     &graphql.Field{Type: graphql.String},
			"distance":        &graphql.Field{Type: graphql.Float},
		},
	})

	declinationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Declination",
		Fields: graphql.Fields{
			"declination_deg": &graphql.Field{Type: graphql.Float},
			"model_epoch":     &graphql.Field{Type: graphql.Int},
			"date":            &graphql.Field{Type: graphql.String},
		},
	})

	correctedVectorType := graphql.NewObject(graphql.ObjectConfig{
		Name: "CorrectedVector",
		Fields: graphql.Fields{
			"time":            &graphql.Field{Type: graphql.String},
			"deployment_id":   &graphql.Field{Type: graphql.String},
			"lat":             &graphql.Field{Type: graphql.Float},
			"lon":             &graphql.Field{Type: graphql.Float},
			"depth_m":         &graphql.Field{Type: graphql.Float},
			"east":            &graphql.Field{Type: graphql.Float},
			"north":           &graphql.Field{Type: graphql.Float},
			"east_true":       &graphql.Field{Type: graphql.Float},
			"north_true":      &graphql.Field{Type: graphql.Float},
			"declination_deg": &graphql.Field{Type: graphql.Float},
			"model_epoch":     &graphql.Field{Type: graphql.Int},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"declination": &graphql.Field{
				Type:        declinationType,
				Description: "Magnetic declination at a point in space and time",
				Args: graphql.FieldConfigArgument{
					"lat":         &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lon":         &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"depth_m":     &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: 0.0},
					"orientation": &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: "below_sea_level"},
					"time":        &graphql.ArgumentConfig{Type: graphql.String},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					lat := p.Args["lat"].(float64)
					lon := p.Args["lon"].(float64)
					depthM := p.Args["depth_m"].(float64)

					o, err := domain.ParseOrientation(p.Args["orientation"].(string))
					if err != nil {
						return nil, err
					}

					at := time.Now().UTC()
					if raw, ok := p.Args["time"].(string); ok && raw != "" {
						if at, err = parseTimeParam(raw); err != nil {
							return nil, err
						}
					}

					decl, err := deps.Declination.EvaluateAt(p.Context, lat, lon, depthM, o, at)
					if err != nil {
						return nil, err
					}
					return map[string]interface{}{
						"declination_deg": gqlFloat(decl),
						"model_epoch":     deps.Declination.EpochYear(),
						"date":            at.Truncate(24 * time.Hour).Format("2006-01-02"),
					}, nil
				},
			},
			"sampleDeclination": &graphql.Field{
				Type:        graphql.Float,
				Description: "Declination for one sample out of index-aligned arrays",
				Args: graphql.FieldConfigArgument{
					"lats":   &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.NewList(graphql.Float))},
					"lons":   &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.NewList(graphql.Float))},
					"times":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.NewList(graphql.Float))},
					"depths": &graphql.ArgumentConfig{Type: graphql.NewList(graphql.Float)},
					"index":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					batch := domain.ObservationBatch{
						Lats:        floatList(p.Args["lats"]),
						Lons:        floatList(p.Args["lons"]),
						Times:       floatList(p.Args["times"]),
						Depths:      floatList(p.Args["depths"]),
						Orientation: domain.BelowSeaLevel,
					}
					if len(batch.Depths) == 0 {
						batch.Depths = []float64{0}
					}

					decls, err := deps.Declination.Evaluate(p.Context, batch)
					if err != nil {
						return nil, err
					}
					v, err := domain.ExtractParameter(decls, p.Args["index"].(int))
					if err != nil {
						return nil, err
					}
					return gqlFloat(v), nil
				},
			},
			"deployments": &graphql.Field{
				Type:        graphql.NewList(deploymentType),
				Description: "List instrument deployments",
				Args: graphql.FieldConfigArgument{
					"limit":  &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 50},
					"offset": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					limit := p.Args["limit"].(int)
					offset := p.Args["offset"].(int)
					ds, _, err := deps.Deployments.List(p.Context, limit, offset)
					return ds, err
				},
			},
			"deployment": &graphql.Field{
				Type:        deploymentType,
				Description: "Get a deployment by reference designator",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Deployments.GetByID(p.Context, p.Args["id"].(string))
				},
			},
			"nearestDeployments": &graphql.Field{
				Type:        graphql.NewList(deploymentType),
				Description: "Active deployments closest to a point",
				Args: graphql.FieldConfigArgument{
					"lat":   &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lon":   &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"limit": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 5},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					lat := p.Args["lat"].(float64)
					lon := p.Args["lon"].(float64)
					limit := p.Args["limit"].(int)
					return deps.Deployments.Nearest(p.Context, lat, lon, limit)
				},
			},
			"series": &graphql.Field{
				Type:        graphql.NewList(correctedVectorType),
				Description: "Corrected velocity series for a deployment",
				Args: graphql.FieldConfigArgument{
					"deployment_id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"from":          &graphql.ArgumentConfig{Type: graphql.String},
					"to":            &graphql.ArgumentConfig{Type: graphql.String},
					"limit":         &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 100},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					id := p.Args["deployment_id"].(string)
					limit := p.Args["limit"].(int)

					var from, to time.Time
					if raw, ok := p.Args["from"].(string); ok && raw != "" {
						t, err := parseTimeParam(raw)
						if err != nil {
							return nil, err
						}
						from = t
					}
					if raw, ok := p.Args["to"].(string); ok && raw != "" {
						t, err := parseTimeParam(raw)
						if err != nil {
							return nil, err
						}
						to = t
					}

					vs, err := deps.Deployments.Series(p.Context, id, from, to, limit)
					if err != nil {
						return nil, err
					}
					// Convert to maps so timestamps format cleanly and NaN
					// components serialize as null
					result := make([]map[string]interface{}, 0, len(vs))
					for _, v := range vs {
						result = append(result, map[string]interface{}{
							"time":            v.Time.UTC().Format(time.RFC3339Nano),
							"deployment_id":   v.DeploymentID,
							"lat":             gqlFloat(v.Lat),
							"lon":             gqlFloat(v.Lon),
							"depth_m":         gqlFloat(v.DepthM),
							"east":            gqlFloat(v.East),
							"north":           gqlFloat(v.North),
							"east_true":       gqlFloat(v.EastTrue),
							"north_true":      gqlFloat(v.NorthTrue),
							"declination_deg": gqlFloat(v.DeclinationDeg),
							"model_epoch":     v.ModelEpoch,
						})
					}
					return result, nil
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
			return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
