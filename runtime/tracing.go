package runtime

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/warriorguo/graphflow/types"
)

const instrumentationName = "github.com/warriorguo/graphflow/runtime"

func tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

func startRunSpan(ctx context.Context, workflowID, runID string) (context.Context, trace.Span) {
	return tracer().Start(ctx, "graphflow.run",
		trace.WithAttributes(
			attribute.String("workflow.id", workflowID),
			attribute.String("run.id", runID),
		))
}

func startLevelSpan(ctx context.Context, level int, frontier []string) (context.Context, trace.Span) {
	return tracer().Start(ctx, "graphflow.level",
		trace.WithAttributes(
			attribute.Int("level", level),
			attribute.StringSlice("frontier", frontier),
		))
}

func startNodeSpan(ctx context.Context, node *types.Node) (context.Context, trace.Span) {
	return tracer().Start(ctx, "graphflow.node",
		trace.WithAttributes(
			attribute.String("node.id", node.ID),
			attribute.String("node.kind", string(node.Kind)),
		))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
