// Package mongoclient implements the MongoDB client variant of the
// uniform client contract, per spec.md §4.3.
package mongoclient

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/artpar/gatewayd/domain/gateway"
	"github.com/artpar/gatewayd/gatewayerr"
	"github.com/artpar/gatewayd/interpolate"
	"github.com/artpar/gatewayd/value"
)

// Client executes find/findone/insert/update/delete operations against
// one configured Mongo database.
type Client struct {
	id       string
	client   *mongo.Client
	database string
	log      zerolog.Logger
}

// New dials spec.ConnString and pins the database named in spec.Database.
func New(ctx context.Context, spec gateway.ClientSpec, log zerolog.Logger) (*Client, error) {
	opts := options.Client().ApplyURI(spec.ConnString).SetMaxPoolSize(uint64(spec.MaxConns))
	c, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := c.Ping(ctx, nil); err != nil {
		_ = c.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return &Client{
		id:       spec.ID,
		client:   c,
		database: spec.Database,
		log:      log.With().Str("client_id", spec.ID).Str("client_kind", "mongodb").Logger(),
	}, nil
}

// Execute implements client.Client.
func (c *Client) Execute(ctx context.Context, spec gateway.SubrequestSpec, gctx *gateway.Context) (value.Value, error) {
	root := gctx.Root()
	coll := c.client.Database(c.database).Collection(spec.Collection)

	switch spec.MongoOp {
	case "find":
		filter, err := interpolatedJSON(spec.Filter, root, spec.Name)
		if err != nil {
			return value.Value{}, err
		}
		findOpts := options.Find()
		if spec.Limit != nil {
			findOpts.SetLimit(*spec.Limit)
		}
		cur, err := coll.Find(ctx, filter, findOpts)
		if err != nil {
			return value.Value{}, classifyError(c.id, spec.Name, err)
		}
		defer cur.Close(ctx)

		var docs []value.Value
		for cur.Next(ctx) {
			v, err := decodeRaw(cur.Current)
			if err != nil {
				return value.Value{}, gatewayerr.NewSubrequestError(gatewayerr.SubrequestSerialization, c.id, spec.Name, err.Error())
			}
			docs = append(docs, v)
		}
		if err := cur.Err(); err != nil {
			return value.Value{}, classifyError(c.id, spec.Name, err)
		}
		return resultEnvelope(c.id, "documents", value.Array(docs)), nil

	case "findone":
		filter, err := interpolatedJSON(spec.Filter, root, spec.Name)
		if err != nil {
			return value.Value{}, err
		}
		raw, err := coll.FindOne(ctx, filter).Raw()
		if err == mongo.ErrNoDocuments {
			return resultEnvelope(c.id, "document", value.Null()), nil
		}
		if err != nil {
			return value.Value{}, classifyError(c.id, spec.Name, err)
		}
		v, err := decodeRaw(raw)
		if err != nil {
			return value.Value{}, gatewayerr.NewSubrequestError(gatewayerr.SubrequestSerialization, c.id, spec.Name, err.Error())
		}
		return resultEnvelope(c.id, "document", v), nil

	case "insert":
		doc, err := interpolatedJSON(spec.Document, root, spec.Name)
		if err != nil {
			return value.Value{}, err
		}
		res, err := coll.InsertOne(ctx, doc)
		if err != nil {
			return value.Value{}, classifyError(c.id, spec.Name, err)
		}
		out := value.NewObject()
		out.Set("client_id", value.String(c.id))
		out.Set("type", value.String("mongo"))
		out.Set("acknowledged", value.Bool(true))
		out.Set("inserted_id", value.String(fmt.Sprintf("%v", res.InsertedID)))
		return value.FromObject(out), nil

	case "update":
		filter, err := interpolatedJSON(spec.Filter, root, spec.Name)
		if err != nil {
			return value.Value{}, err
		}
		update, err := interpolatedJSON(spec.Update, root, spec.Name)
		if err != nil {
			return value.Value{}, err
		}
		res, err := coll.UpdateMany(ctx, filter, update)
		if err != nil {
			return value.Value{}, classifyError(c.id, spec.Name, err)
		}
		out := value.NewObject()
		out.Set("client_id", value.String(c.id))
		out.Set("type", value.String("mongo"))
		out.Set("matched_count", value.Integer(res.MatchedCount))
		out.Set("modified_count", value.Integer(res.ModifiedCount))
		return value.FromObject(out), nil

	case "delete":
		filter, err := interpolatedJSON(spec.Filter, root, spec.Name)
		if err != nil {
			return value.Value{}, err
		}
		res, err := coll.DeleteMany(ctx, filter)
		if err != nil {
			return value.Value{}, classifyError(c.id, spec.Name, err)
		}
		out := value.NewObject()
		out.Set("client_id", value.String(c.id))
		out.Set("type", value.String("mongo"))
		out.Set("matched_count", value.Integer(res.DeletedCount))
		out.Set("deleted_count", value.Integer(res.DeletedCount))
		return value.FromObject(out), nil

	default:
		return value.Value{}, gatewayerr.NewConfigError("mongoclient: unknown operation %q", spec.MongoOp)
	}
}

// Close disconnects the driver.
func (c *Client) Close() error {
	return c.client.Disconnect(context.Background())
}

func resultEnvelope(clientID, field string, v value.Value) value.Value {
	out := value.NewObject()
	out.Set("client_id", value.String(clientID))
	out.Set("type", value.String("mongo"))
	out.Set(field, v)
	return value.FromObject(out)
}

// interpolatedJSON resolves raw (an interpolation expression) and
// requires the result to parse as JSON, per spec.md §4.3.
func interpolatedJSON(raw string, root value.Value, subrequestID string) (bson.M, error) {
	resolved, err := interpolate.ResolveString(raw, root)
	if err != nil {
		return nil, &gatewayerr.InterpolationError{Message: err.Error(), SubrequestID: subrequestID}
	}
	v, err := value.ParseJSON([]byte(resolved))
	if err != nil {
		return nil, gatewayerr.NewTransformError("mongo filter/document/update did not parse as JSON: %s", err)
	}
	m, ok := value.ToAny(v).(map[string]any)
	if !ok {
		return nil, gatewayerr.NewTransformError("mongo filter/document/update must be a JSON object")
	}
	return bson.M(m), nil
}

func decodeRaw(raw bson.Raw) (value.Value, error) {
	var m map[string]any
	if err := bson.Unmarshal(raw, &m); err != nil {
		return value.Value{}, err
	}
	return value.FromAny(m), nil
}

func classifyError(clientID, subrequestID string, err error) *gatewayerr.SubrequestError {
	if err == context.DeadlineExceeded {
		return gatewayerr.NewSubrequestError(gatewayerr.SubrequestTimeout, clientID, subrequestID, err.Error())
	}
	return gatewayerr.NewSubrequestError(gatewayerr.SubrequestBackend, clientID, subrequestID, err.Error())
}
