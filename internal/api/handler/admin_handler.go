package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/granarylabs/granary/internal/domain"
	"github.com/granarylabs/granary/internal/logger"
	"github.com/granarylabs/granary/internal/service"
)

// AdminHandler handles admin operations: triggering passes and reporting
// scheduler state.
type AdminHandler struct {
	scheduler *service.Scheduler
	logger    *logger.Logger
}

// NewAdminHandler creates a new admin handler.
// Parameters:
//   - scheduler: scheduler receiving pass triggers.
//   - log: logger instance.
// Returns:
//   - *AdminHandler: initialized handler.
func NewAdminHandler(scheduler *service.Scheduler, log *logger.Logger) *AdminHandler {
	return &AdminHandler{
		scheduler: scheduler,
		logger:    log,
	}
}

// PassStatusResponse represents the scheduler status.
type PassStatusResponse struct {
	IsRunning  bool               `json:"is_running"`
	LastResult *domain.PassResult `json:"last_result,omitempty"`
}

// TriggerPass requests an on-demand ingestion pass. The pass runs in the
// background; a pass already in progress rejects the trigger instead of
// queuing it.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *AdminHandler) TriggerPass(c *gin.Context) {
	ctx := c.Request.Context()

	logger.CtxInfo(ctx, "Received pass trigger: client_ip=%s", c.ClientIP())

	if !h.scheduler.Trigger("api") {
		logger.CtxWarn(ctx, "Pass trigger rejected: already running, client_ip=%s", c.ClientIP())
		c.JSON(http.StatusConflict, gin.H{"error": "A pass is already running"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"message": "Pass triggered"})
}

// GetPassStatus returns whether a pass is running and the last pass result.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *AdminHandler) GetPassStatus(c *gin.Context) {
	resp := PassStatusResponse{
		IsRunning: h.scheduler.Running(),
	}
	if last, ok := h.scheduler.LastResult(); ok {
		resp.LastResult = last
	}

	logger.CtxDebug(c.Request.Context(), "Pass status requested: client_ip=%s, is_running=%v",
		c.ClientIP(), resp.IsRunning)

	c.JSON(http.StatusOK, resp)
}

// GetLastPass returns the most recent pass result in full, including the
// per-file outcomes.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *AdminHandler) GetLastPass(c *gin.Context) {
	last, ok := h.scheduler.LastResult()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no pass has run yet"})
		return
	}
	c.JSON(http.StatusOK, last)
}

// AdminPage serves the admin dashboard HTML page.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes HTML response).
func (h *AdminHandler) AdminPage(c *gin.Context) {
	html := `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Granary Admin</title>
    <style>
        * { box-sizing: border-box; margin: 0; padding: 0; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            background: linear-gradient(135deg, #3a6b35 0%, #1f3d1c 100%);
            min-height: 100vh;
            padding: 2rem;
        }
        .container { max-width: 600px; margin: 0 auto; }
        .card {
            background: white;
            border-radius: 16px;
            padding: 2rem;
            box-shadow: 0 10px 40px rgba(0,0,0,0.2);
            margin-bottom: 1.5rem;
        }
        h1 { color: #333; margin-bottom: 0.5rem; font-size: 1.8rem; }
        .subtitle { color: #666; margin-bottom: 1.5rem; }
        button {
            width: 100%;
            padding: 1rem;
            background: linear-gradient(135deg, #3a6b35 0%, #1f3d1c 100%);
            color: white;
            border: none;
            border-radius: 8px;
            font-size: 1.1rem;
            font-weight: 600;
            cursor: pointer;
        }
        button:disabled { opacity: 0.6; cursor: not-allowed; }
        .status { padding: 1rem; border-radius: 8px; margin-top: 1rem; display: none; }
        .status.success { background: #d4edda; color: #155724; display: block; }
        .status.error { background: #f8d7da; color: #721c24; display: block; }
        .stats { margin-top: 1rem; padding: 1rem; background: #f8f9fa; border-radius: 8px; }
        .stats-row {
            display: flex;
            justify-content: space-between;
            padding: 0.5rem 0;
            border-bottom: 1px solid #e0e0e0;
        }
        .stats-row:last-child { border-bottom: none; }
        .quick-links { display: flex; gap: 1rem; flex-wrap: wrap; }
        .quick-links a {
            flex: 1;
            min-width: 120px;
            padding: 0.75rem;
            background: #f8f9fa;
            color: #333;
            text-decoration: none;
            border-radius: 8px;
            text-align: center;
        }
        .quick-links a:hover { background: #e9ecef; }
    </style>
</head>
<body>
    <div class="container">
        <div class="card">
            <h1>Granary Admin</h1>
            <p class="subtitle">File ingestion control panel</p>

            <button id="runBtn">Run ingestion pass</button>
            <div id="status" class="status"></div>
            <div id="stats" class="stats" style="display: none;"></div>
        </div>

        <div class="card">
            <h2 style="margin-bottom: 1rem;">Quick links</h2>
            <div class="quick-links">
                <a href="/api/v1/stats">Stats</a>
                <a href="/api/v1/files">Files</a>
                <a href="/api/v1/passes/last">Last pass</a>
                <a href="/health">Health</a>
            </div>
        </div>
    </div>

    <script>
        const runBtn = document.getElementById('runBtn');
        const statusDiv = document.getElementById('status');
        const statsDiv = document.getElementById('stats');

        async function refresh() {
            const response = await fetch('/api/v1/passes/status');
            const data = await response.json();

            runBtn.disabled = data.is_running;
            runBtn.textContent = data.is_running ? 'Pass running...' : 'Run ingestion pass';

            if (data.last_result) {
                const r = data.last_result;
                statsDiv.style.display = 'block';
                statsDiv.innerHTML = ` + "`" + `
                    <div class="stats-row"><span>Total</span><span>${r.total}</span></div>
                    <div class="stats-row"><span>Succeeded</span><span>${r.succeeded}</span></div>
                    <div class="stats-row"><span>Partial</span><span>${r.partial}</span></div>
                    <div class="stats-row"><span>Failed</span><span>${r.failed}</span></div>
                    <div class="stats-row"><span>Skipped</span><span>${r.skipped}</span></div>
                    <div class="stats-row"><span>Rows imported</span><span>${r.rows_imported}</span></div>
                ` + "`" + `;
            }
        }

        runBtn.addEventListener('click', async () => {
            runBtn.disabled = true;
            try {
                const response = await fetch('/api/v1/passes', { method: 'POST' });
                const data = await response.json();
                statusDiv.className = response.ok ? 'status success' : 'status error';
                statusDiv.textContent = response.ok ? data.message : data.error;
            } catch (err) {
                statusDiv.className = 'status error';
                statusDiv.textContent = 'Network error: ' + err.message;
            }
        });

        refresh();
        setInterval(refresh, 2000);
    </script>
</body>
</html>`
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.String(http.StatusOK, html)
}
