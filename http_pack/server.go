package http_pack

import (
	"fmt"
	"strconv"

	"github.com/playergold/playergold-bootstrap-core/http_pack/routes"
	"github.com/playergold/playergold-bootstrap-core/utils"

	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"
)

func createRouter(handlers *routes.Handlers) fasthttp.RequestHandler {

	r := router.New()

	// Read side: liveness, state snapshots, formation artifacts, diagnostics
	r.GET("/health", handlers.GetHealth)
	r.GET("/bootstrap/state", handlers.GetBootstrapState)
	r.GET("/network/state", handlers.GetNetworkState)
	r.GET("/network/config", handlers.GetNetworkConfig)
	r.GET("/genesis", handlers.GetGenesis)
	r.GET("/attempts/stats", handlers.GetAttemptsStats)
	r.GET("/directory/stats", handlers.GetDirectoryStats)

	// Write side: bootstrap inputs from the wallet/mining collaborators
	r.POST("/wallet/created", handlers.PostWalletCreated)
	r.POST("/mining/ready", handlers.PostMiningReady)
	r.POST("/bootstrap/reset", handlers.PostBootstrapReset)

	// Gated example: rejected with a formation requirement until the network exists
	r.POST("/transaction/send", handlers.PostSendTransaction)

	return r.Handler
}

func CreateHTTPServer(handlers *routes.Handlers) {

	serverAddr := handlers.Config.Interface + ":" + strconv.Itoa(handlers.Config.Port)

	utils.LogWithTime(fmt.Sprintf("Server is starting at http://%s ...✅", serverAddr), utils.CYAN_COLOR)

	if err := fasthttp.ListenAndServe(serverAddr, createRouter(handlers)); err != nil {
		utils.LogWithTime(fmt.Sprintf("Error in server: %s", err), utils.RED_COLOR)
	}
}
