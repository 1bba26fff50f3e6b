package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"shopsquad/internal/apperrors"
	"shopsquad/internal/catalog"
	"shopsquad/internal/cost"
	"shopsquad/internal/models"
	"shopsquad/internal/products"
	"shopsquad/internal/squads"
	"shopsquad/internal/timestamp"
	"shopsquad/web/views"
)

// SquadHandler serves squad pages and the squad JSON API
type SquadHandler struct {
	dir      *squads.Directory
	appURL   string
	location *time.Location
}

func NewSquadHandler(dir *squads.Directory, appURL string, location *time.Location) *SquadHandler {
	if location == nil {
		location = time.Local
	}
	return &SquadHandler{dir: dir, appURL: appURL, location: location}
}

func (h *SquadHandler) detail(squad models.Squad) SquadDetail {
	return SquadDetail{
		Squad:        squad,
		Distribution: cost.ForSquad(squad),
		InviteLink:   squads.InviteLink(h.appURL, squad.ID),
		MapsURL:      squads.MapsURL(squad.Location),
	}
}

// memberSquad loads the squad and checks that identity belongs to it.
func (h *SquadHandler) memberSquad(ctx context.Context, squadID string, identity *models.Identity) (*models.Squad, error) {
	squad, err := h.dir.Get(ctx, squadID)
	if err != nil {
		return nil, err
	}
	if !squads.IsParticipant(squad, identity.ID) {
		return nil, apperrors.Forbidden("handlers.memberSquad", "Only members of this squad can do that.")
	}
	return squad, nil
}

// ListPage renders the identity's squads
func (h *SquadHandler) ListPage(c echo.Context) error {
	identity, err := requireIdentity(c)
	if err != nil {
		return err
	}
	list, err := h.dir.Snapshot(c.Request().Context(), identity)
	if err != nil {
		return err
	}
	return render(c, http.StatusOK, views.SquadsPage(views.SquadsPageProps{
		Identity: identity,
		Squads:   list,
		Location: h.location,
	}))
}

// CreateFromForm handles the create form on the list page
func (h *SquadHandler) CreateFromForm(c echo.Context) error {
	identity, err := requireIdentity(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	date := parseFormDateTime(c.FormValue("date"), c.FormValue("time"), h.location)
	squad, err := h.dir.Create(ctx, identity, c.FormValue("title"), date, c.FormValue("location"))
	if err != nil {
		if !errorsIsValidation(err) {
			return err
		}
		list, listErr := h.dir.Snapshot(ctx, identity)
		if listErr != nil {
			return listErr
		}
		return render(c, http.StatusBadRequest, views.SquadsPage(views.SquadsPageProps{
			Identity:  identity,
			Squads:    list,
			Location:  h.location,
			FormError: apperrors.Message(err),
		}))
	}
	return redirect(c, "/squads/"+squad.ID)
}

// DetailPage renders one squad. Non-members are sent to the join page.
func (h *SquadHandler) DetailPage(c echo.Context) error {
	identity, err := requireIdentity(c)
	if err != nil {
		return err
	}
	squad, err := h.dir.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	if !squads.IsParticipant(squad, identity.ID) {
		return redirect(c, "/join/"+squad.ID)
	}
	return render(c, http.StatusOK, views.SquadPage(h.pageProps(identity, *squad, "")))
}

func (h *SquadHandler) pageProps(identity *models.Identity, squad models.Squad, formError string) views.SquadPageProps {
	d := h.detail(squad)
	return views.SquadPageProps{
		Identity:     identity,
		Squad:        squad,
		Distribution: d.Distribution,
		InviteLink:   d.InviteLink,
		MapsURL:      d.MapsURL,
		Location:     h.location,
		Catalog:      catalog.All(),
		CanAssign:    func(p models.Product) bool { return products.CanAssign(p, identity.ID) },
		FormError:    formError,
	}
}

// JoinPage is where invite links land
func (h *SquadHandler) JoinPage(c echo.Context) error {
	identity, err := requireIdentity(c)
	if err != nil {
		return err
	}
	squad, err := h.dir.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return render(c, http.StatusOK, views.JoinPage(views.JoinPageProps{
		Identity: identity,
		Squad:    *squad,
		IsMember: squads.IsParticipant(squad, identity.ID),
		Location: h.location,
	}))
}

// JoinFromForm joins the squad and opens it
func (h *SquadHandler) JoinFromForm(c echo.Context) error {
	identity, err := requireIdentity(c)
	if err != nil {
		return err
	}
	squad, err := h.dir.Join(c.Request().Context(), c.Param("id"), identity)
	if err != nil {
		return err
	}
	return redirect(c, "/squads/"+squad.ID)
}

// List returns the identity's squads, most recent date first
func (h *SquadHandler) List(c echo.Context) error {
	identity, err := requireIdentity(c)
	if err != nil {
		return err
	}
	list, err := h.dir.Snapshot(c.Request().Context(), identity)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, SquadsResponse{Squads: list})
}

func (h *SquadHandler) Create(c echo.Context) error {
	identity, err := requireIdentity(c)
	if err != nil {
		return err
	}
	var req CreateSquadRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.Validation("handlers.CreateSquad", "Invalid request body")
	}

	squad, err := h.dir.Create(c.Request().Context(), identity, req.Title, req.Date, req.Location)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, h.detail(*squad))
}

// Get returns a squad with its cost distribution. Members only.
func (h *SquadHandler) Get(c echo.Context) error {
	identity, err := requireIdentity(c)
	if err != nil {
		return err
	}
	squad, err := h.memberSquad(c.Request().Context(), c.Param("id"), identity)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.detail(*squad))
}

// Update patches title, date or location. Members only.
func (h *SquadHandler) Update(c echo.Context) error {
	const op = "handlers.UpdateSquad"
	identity, err := requireIdentity(c)
	if err != nil {
		return err
	}
	var req UpdateSquadRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.Validation(op, "Invalid request body")
	}

	patch := models.SquadPatch{Title: req.Title, Location: req.Location}
	if req.Date != nil {
		ts, err := timestamp.ToBackend(*req.Date)
		if err != nil {
			return apperrors.Validation(op, "Please pick a valid date")
		}
		patch.Date = &ts
	}
	if patch.IsEmpty() {
		return apperrors.Validation(op, "Nothing to update")
	}

	ctx := c.Request().Context()
	if _, err := h.memberSquad(ctx, c.Param("id"), identity); err != nil {
		return err
	}
	if err := h.dir.Update(ctx, identity, c.Param("id"), patch); err != nil {
		return err
	}

	squad, err := h.dir.Get(ctx, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.detail(*squad))
}

func (h *SquadHandler) Join(c echo.Context) error {
	identity, err := requireIdentity(c)
	if err != nil {
		return err
	}
	squad, err := h.dir.Join(c.Request().Context(), c.Param("id"), identity)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.detail(*squad))
}

// parseFormDateTime reads the date and time inputs of the create form in loc.
// Unparseable input yields the zero time, which Create rejects.
func parseFormDateTime(date, clock string, loc *time.Location) time.Time {
	date, clock = strings.TrimSpace(date), strings.TrimSpace(clock)
	if date == "" || clock == "" {
		return time.Time{}
	}
	t, err := time.ParseInLocation("2006-01-02 15:04", date+" "+clock, loc)
	if err != nil {
		return time.Time{}
	}
	return t
}
