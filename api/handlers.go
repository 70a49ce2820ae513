package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"taskcart-api/catalog"
	"taskcart-api/domain"
	"taskcart-api/store"
)

const mutationMaxSize = 64 * 1024 // 64 KiB

const idempotencyHeader = "Idempotency-Key"

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, board Board, cat Catalog, themes ThemeStore, deduper Deduper, logger *log.Logger) {
	e.GET("/healthz", healthz())

	e.GET("/api/products", getProducts(cat, logger))
	e.POST("/api/products/refresh", refreshProducts(cat, logger))

	e.GET("/api/tasks", getTasks(board))
	e.POST("/api/tasks", postTask(board, deduper))
	e.PATCH("/api/tasks/:id", patchTask(board))
	e.DELETE("/api/tasks/:id", deleteTask(board))
	e.POST("/api/tasks/drop", dropTask(board))

	e.GET("/api/cart", getCart(board))
	e.POST("/api/cart/items", postCartItem(board, deduper))
	e.POST("/api/cart/items/:id/increment", bumpCartItem(board, board.IncrementCartItem))
	e.POST("/api/cart/items/:id/decrement", bumpCartItem(board, board.DecrementCartItem))
	e.DELETE("/api/cart/items/:id", removeCartItem(board))
	e.DELETE("/api/cart", clearCart(board))

	e.GET("/api/theme", getTheme(themes))
	e.PUT("/api/theme", putTheme(themes))
	e.DELETE("/api/theme", deleteTheme(themes))

	e.GET("/api/stream", streamState(board))
}

type errorResponse struct {
	Error string `json:"error"`
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}

type productsResponse struct {
	Products   []domain.Product `json:"products"`
	Total      int              `json:"total"`
	Categories []string         `json:"categories"`
}

func getProducts(cat Catalog, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		metrics, spanCtx := newProductsRequestMetrics(c.Request().Context(), logger)
		c.SetRequest(c.Request().WithContext(spanCtx))
		ctx := spanCtx
		defer func() {
			metrics.Finish(c.Response().Status, err)
		}()

		filters, ferr := parseProductFilters(c)
		if ferr != nil {
			metrics.SetErrorStage("invalid_filters")
			err = c.JSON(http.StatusBadRequest, errorResponse{Error: ferr.Error()})
			return err
		}
		metrics.SetFiltered(filters != domain.ProductFilters{SortBy: domain.SortByName})

		fetchStart := time.Now()
		page, fetchErr := cat.Products(ctx)
		metrics.ObserveFetch(time.Since(fetchStart))
		if fetchErr != nil {
			return respondCatalogError(c, metrics, fetchErr, &err)
		}

		pipelineStart := time.Now()
		filtered := domain.ApplyFilters(page.Products, filters)
		facets := domain.Categories(page.Products)
		metrics.ObservePipeline(time.Since(pipelineStart))
		metrics.SetProductsReturned(len(filtered))
		metrics.SetFacets(len(facets))

		encodeStart := time.Now()
		err = c.JSON(http.StatusOK, productsResponse{
			Products:   filtered,
			Total:      len(filtered),
			Categories: facets,
		})
		metrics.ObserveEncode(time.Since(encodeStart))
		if err != nil {
			metrics.SetErrorStage("encode_response")
		}
		return err
	}
}

func refreshProducts(cat Catalog, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		page, err := cat.Refresh(c.Request().Context())
		if err != nil {
			var unavailable *catalog.UnavailableError
			if errors.As(err, &unavailable) {
				return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "could not load catalog"})
			}
			c.Logger().Error(err)
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		}
		return c.JSON(http.StatusOK, productsResponse{
			Products:   page.Products,
			Total:      len(page.Products),
			Categories: domain.Categories(page.Products),
		})
	}
}

func respondCatalogError(c echo.Context, metrics *productsRequestMetrics, fetchErr error, out *error) error {
	var unavailable *catalog.UnavailableError
	if errors.As(fetchErr, &unavailable) {
		metrics.SetErrorStage("catalog_unavailable")
		*out = c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "could not load catalog"})
		return *out
	}
	metrics.SetErrorStage("catalog")
	c.Logger().Error(fetchErr)
	*out = c.JSON(http.StatusInternalServerError, errorResponse{Error: fetchErr.Error()})
	return *out
}

func parseProductFilters(c echo.Context) (domain.ProductFilters, error) {
	f := domain.ProductFilters{
		Category: c.QueryParam("category"),
		Search:   c.QueryParam("search"),
		SortBy:   domain.SortByName,
	}
	if v := c.QueryParam("sortBy"); v != "" {
		mode := domain.SortMode(v)
		switch mode {
		case domain.SortByName, domain.SortByPriceAsc, domain.SortByPriceDesc, domain.SortByRating:
			f.SortBy = mode
		default:
			return f, errors.New("invalid sortBy")
		}
	}
	for _, bound := range []struct {
		param string
		dst   **float64
	}{
		{"minPrice", &f.MinPrice},
		{"maxPrice", &f.MaxPrice},
		{"minRating", &f.MinRating},
	} {
		v := strings.TrimSpace(c.QueryParam(bound.param))
		if v == "" {
			continue
		}
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return f, errors.New("invalid " + bound.param)
		}
		*bound.dst = &parsed
	}
	return f, nil
}

type tasksResponse struct {
	Tasks []domain.Task `json:"tasks"`
}

func getTasks(board Board) echo.HandlerFunc {
	return func(c echo.Context) error {
		filters := domain.KanbanFilters{
			Status:   c.QueryParam("status"),
			Priority: c.QueryParam("priority"),
		}
		state := board.Get()
		return c.JSON(http.StatusOK, tasksResponse{Tasks: domain.VisibleTasks(state.Tasks, filters)})
	}
}

type taskRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	Assignee    string     `json:"assignee"`
	DueDate     *time.Time `json:"dueDate"`
}

func postTask(board Board, deduper Deduper) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req taskRequest
		if err := decodeBody(c, &req); err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid body"})
		}
		if strings.TrimSpace(req.Title) == "" {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "title is required"})
		}
		task := domain.Task{
			Title:       req.Title,
			Description: req.Description,
			Status:      domain.StatusTodo,
			Priority:    domain.PriorityMedium,
			Assignee:    req.Assignee,
			DueDate:     req.DueDate,
		}
		if req.Status != "" {
			task.Status = domain.Status(req.Status)
			if !domain.ValidStatus(task.Status) {
				return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid status"})
			}
		}
		if req.Priority != "" {
			task.Priority = domain.Priority(req.Priority)
			if !domain.ValidPriority(task.Priority) {
				return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid priority"})
			}
		}

		ctx := c.Request().Context()
		key, fresh, err := claimIdempotencyKey(c, deduper)
		if err != nil {
			c.Logger().Error(err)
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: "idempotency check failed"})
		}
		if !fresh {
			return c.NoContent(http.StatusConflict)
		}

		created, err := board.AddTask(ctx, task)
		if err != nil {
			releaseIdempotencyKey(c, deduper, key)
			return respondStoreError(c, err)
		}
		return c.JSON(http.StatusCreated, created)
	}
}

func patchTask(board Board) echo.HandlerFunc {
	return func(c echo.Context) error {
		var patch domain.TaskPatch
		if err := decodeBody(c, &patch); err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid body"})
		}
		if patch.Status != nil && !domain.ValidStatus(*patch.Status) {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid status"})
		}
		if patch.Priority != nil && !domain.ValidPriority(*patch.Priority) {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid priority"})
		}

		updated, found, err := board.UpdateTask(c.Request().Context(), c.Param("id"), patch)
		if err != nil {
			return respondStoreError(c, err)
		}
		if !found {
			return c.JSON(http.StatusNotFound, errorResponse{Error: "task not found"})
		}
		return c.JSON(http.StatusOK, updated)
	}
}

func deleteTask(board Board) echo.HandlerFunc {
	return func(c echo.Context) error {
		// Deleting an absent task is a no-op, not an error.
		if _, err := board.DeleteTask(c.Request().Context(), c.Param("id")); err != nil {
			return respondStoreError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

type dropRequest struct {
	ActiveID   string `json:"activeId"`
	OverTaskID string `json:"overTaskId"`
	OverColumn string `json:"overColumn"`
}

type dropResponse struct {
	Changed bool          `json:"changed"`
	Tasks   []domain.Task `json:"tasks"`
}

func dropTask(board Board) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req dropRequest
		if err := decodeBody(c, &req); err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid body"})
		}
		if req.ActiveID == "" {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "activeId is required"})
		}
		if (req.OverTaskID == "") == (req.OverColumn == "") {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "exactly one of overTaskId and overColumn is required"})
		}
		target := domain.DropTarget{TaskID: req.OverTaskID}
		if req.OverColumn != "" {
			target = domain.DropTarget{Column: domain.Status(req.OverColumn)}
			if !domain.ValidStatus(target.Column) {
				return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid overColumn"})
			}
		}

		changed, err := board.Drop(c.Request().Context(), req.ActiveID, target)
		if err != nil {
			return respondStoreError(c, err)
		}
		return c.JSON(http.StatusOK, dropResponse{Changed: changed, Tasks: board.Get().Tasks})
	}
}

type cartResponse struct {
	Items      []domain.CartLine `json:"items"`
	ItemCount  int               `json:"itemCount"`
	LineCount  int               `json:"lineCount"`
	TotalPrice float64           `json:"totalPrice"`
}

func cartSnapshot(board Board) cartResponse {
	cart := board.Get().Cart
	return cartResponse{
		Items:      cart,
		ItemCount:  domain.ItemCount(cart),
		LineCount:  domain.LineCount(cart),
		TotalPrice: domain.TotalPrice(cart),
	}
}

func getCart(board Board) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, cartSnapshot(board))
	}
}

type cartItemRequest struct {
	ID        int     `json:"id"`
	Title     string  `json:"title"`
	Price     float64 `json:"price"`
	Thumbnail string  `json:"thumbnail"`
}

func postCartItem(board Board, deduper Deduper) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req cartItemRequest
		if err := decodeBody(c, &req); err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid body"})
		}
		if req.ID <= 0 {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "id is required"})
		}
		if req.Price < 0 {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid price"})
		}

		key, fresh, err := claimIdempotencyKey(c, deduper)
		if err != nil {
			c.Logger().Error(err)
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: "idempotency check failed"})
		}
		if !fresh {
			return c.JSON(http.StatusOK, cartSnapshot(board))
		}

		addErr := board.AddToCart(c.Request().Context(), domain.CartLine{
			ID:        req.ID,
			Title:     req.Title,
			Price:     req.Price,
			Thumbnail: req.Thumbnail,
		})
		if addErr != nil {
			releaseIdempotencyKey(c, deduper, key)
			return respondStoreError(c, addErr)
		}
		return c.JSON(http.StatusOK, cartSnapshot(board))
	}
}

// bumpCartItem serves both quantity directions; op is the store's increment
// or decrement method.
func bumpCartItem(board Board, op func(ctx context.Context, id int) error) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid id"})
		}
		if err := op(c.Request().Context(), id); err != nil {
			return respondStoreError(c, err)
		}
		return c.JSON(http.StatusOK, cartSnapshot(board))
	}
}

func removeCartItem(board Board) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid id"})
		}
		if err := board.RemoveCartItem(c.Request().Context(), id); err != nil {
			return respondStoreError(c, err)
		}
		return c.JSON(http.StatusOK, cartSnapshot(board))
	}
}

func clearCart(board Board) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := board.ClearCart(c.Request().Context()); err != nil {
			return respondStoreError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

type themeResponse struct {
	Theme  domain.Theme `json:"theme"`
	Source string       `json:"source"`
}

func getTheme(themes ThemeStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		theme, stored, err := themes.LoadTheme(c.Request().Context())
		if err != nil {
			c.Logger().Error(err)
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		}
		if !stored {
			// No explicit preference: the client applies the OS scheme.
			return c.JSON(http.StatusOK, themeResponse{Theme: domain.ThemeLight, Source: "default"})
		}
		return c.JSON(http.StatusOK, themeResponse{Theme: theme, Source: "stored"})
	}
}

type themeRequest struct {
	Theme string `json:"theme"`
}

func putTheme(themes ThemeStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req themeRequest
		if err := decodeBody(c, &req); err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid body"})
		}
		theme := domain.Theme(req.Theme)
		if !domain.ValidTheme(theme) {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "theme must be light or dark"})
		}
		if err := themes.SaveTheme(c.Request().Context(), theme); err != nil {
			c.Logger().Error(err)
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		}
		return c.JSON(http.StatusOK, themeResponse{Theme: theme, Source: "stored"})
	}
}

func deleteTheme(themes ThemeStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := themes.ClearTheme(c.Request().Context()); err != nil {
			c.Logger().Error(err)
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func decodeBody(c echo.Context, dst any) error {
	lr := io.LimitReader(c.Request().Body, mutationMaxSize)
	dec := sonic.ConfigStd.NewDecoder(lr)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// claimIdempotencyKey records the request's Idempotency-Key header, if any.
// fresh is false when the key was already seen. Requests without the header
// always count as fresh.
func claimIdempotencyKey(c echo.Context, deduper Deduper) (key string, fresh bool, err error) {
	key = strings.TrimSpace(c.Request().Header.Get(idempotencyHeader))
	if key == "" || deduper == nil {
		return "", true, nil
	}
	fresh, err = deduper.Add(c.Request().Context(), key)
	return key, fresh, err
}

func releaseIdempotencyKey(c echo.Context, deduper Deduper, key string) {
	if key == "" || deduper == nil {
		return
	}
	if err := deduper.Remove(c.Request().Context(), key); err != nil {
		c.Logger().Errorf("idempotency rollback failed: %v", err)
	}
}

func respondStoreError(c echo.Context, err error) error {
	var perr *store.PersistError
	if errors.As(err, &perr) {
		c.Logger().Error(perr)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "changes could not be saved and were rolled back"})
	}
	c.Logger().Error(err)
	return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
}
