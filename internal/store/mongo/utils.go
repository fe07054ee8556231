package mongo

import (
	"fmt"
	"regexp"

	"fleetdex/internal/store/types"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// filterBSON translates a typed filter into a MongoDB filter document.
func filterBSON(f types.Filter) bson.M {
	switch {
	case len(f.IDs) > 0:
		return bson.M{"_id": bson.M{"$in": f.IDs}}
	case f.Term != nil:
		return bson.M{f.Term.Field: f.Term.Value}
	case f.Token != nil:
		return bson.M{f.Token.Field: primitive.Regex{Pattern: tokenPattern(fmt.Sprint(f.Token.Value))}}
	}
	return bson.M{}
}

// tokenPattern anchors a token inside a comma-joined field so that
// "default" does not match "default-web".
func tokenPattern(token string) string {
	return "(^|,)" + regexp.QuoteMeta(token) + "(,|$)"
}

// projectionBSON builds a projection document. Include and exclude are
// never combined; Query.Validate rejects that before this runs.
func projectionBSON(include, exclude []string) bson.D {
	if len(include) > 0 {
		proj := bson.D{}
		for _, f := range include {
			proj = append(proj, bson.E{Key: f, Value: 1})
		}
		return proj
	}
	if len(exclude) > 0 {
		proj := bson.D{}
		for _, f := range exclude {
			proj = append(proj, bson.E{Key: f, Value: 0})
		}
		return proj
	}
	return nil
}

// scriptPipeline compiles a typed script into an aggregation-pipeline
// update. MongoDB applies pipeline updates atomically per document,
// which gives the same serialization guarantee as server-side scripts.
func scriptPipeline(s types.Script) (mongo.Pipeline, error) {
	ref := "$" + s.Field

	unset := bson.M{"$in": bson.A{bson.M{"$type": ref}, bson.A{"missing", "null"}}}

	switch s.Op {
	case types.OpSetField:
		return mongo.Pipeline{{{Key: "$set", Value: bson.M{s.Field: s.Param}}}}, nil

	case types.OpAppendToken:
		value := bson.M{"$cond": bson.A{
			unset,
			s.Param,
			bson.M{"$concat": bson.A{ref, ",", s.Param}},
		}}
		return mongo.Pipeline{{{Key: "$set", Value: bson.M{s.Field: value}}}}, nil

	case types.OpRemoveToken:
		rejoin := bson.M{"$reduce": bson.M{
			"input": bson.M{"$filter": bson.M{
				"input": bson.M{"$split": bson.A{ref, ","}},
				"as":    "tok",
				"cond":  bson.M{"$ne": bson.A{"$$tok", s.Param}},
			}},
			"initialValue": "",
			"in": bson.M{"$cond": bson.A{
				bson.M{"$eq": bson.A{"$$value", ""}},
				"$$this",
				bson.M{"$concat": bson.A{"$$value", ",", "$$this"}},
			}},
		}}
		// An unset field stays unset; remove never materializes it.
		value := bson.M{"$cond": bson.A{unset, "$$REMOVE", rejoin}}
		return mongo.Pipeline{{{Key: "$set", Value: bson.M{s.Field: value}}}}, nil
	}

	return nil, fmt.Errorf("unknown script op %q", s.Op)
}

// flattenInto flattens nested maps to dotted keys so $set merges nested
// objects field-wise instead of replacing them.
func flattenInto(prefix string, doc map[string]any, out bson.M) {
	for k, v := range doc {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok {
			flattenInto(key, nested, out)
			continue
		}
		if nested, ok := v.(types.Document); ok {
			flattenInto(key, nested, out)
			continue
		}
		out[key] = v
	}
}

// sourceOf converts a decoded BSON document into a store source,
// normalizing driver container types and dropping the _id key.
func sourceOf(raw bson.M) types.Document {
	src := make(types.Document, len(raw))
	for k, v := range raw {
		if k == "_id" {
			continue
		}
		src[k] = normalize(v)
	}
	return src
}

func normalize(v any) any {
	switch t := v.(type) {
	case bson.M:
		m := make(map[string]any, len(t))
		for k, vv := range t {
			m[k] = normalize(vv)
		}
		return m
	case bson.D:
		m := make(map[string]any, len(t))
		for _, e := range t {
			m[e.Key] = normalize(e.Value)
		}
		return m
	case bson.A:
		s := make([]any, len(t))
		for i, vv := range t {
			s[i] = normalize(vv)
		}
		return s
	default:
		return v
	}
}
