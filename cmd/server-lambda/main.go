package main

import (
	"context"

	"example/cpl-trainer/app"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/rs/zerolog/log"
)

var ginLambda *ginadapter.GinLambda

// init runs once per Lambda container (cold start). Game sessions need one
// long-lived process, so only the stateless routes are served here.
func init() {
	svc, err := app.Boot()
	if err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
	ginLambda = ginadapter.New(app.NewStatelessRouter(svc.Handlers(context.Background())))
}

// Handler is the Lambda entrypoint for API Gateway REST/HTTP API (proxy integration)
func Handler(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return ginLambda.ProxyWithContext(ctx, req)
}

func main() {
	lambda.Start(Handler)
}
