package application

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/wms-platform/fulfillment-service/internal/domain"
	"github.com/wms-platform/fulfillment-service/pkg/errors"
)

// toAppError translates domain failures into the API error taxonomy. Errors
// that are already AppErrors and unknown errors pass through unchanged.
func toAppError(err error) error {
	if err == nil || errors.IsAppError(err) {
		return err
	}

	var (
		insufficient *domain.InsufficientStockError
		overScan     *domain.OverScanError
		unknown      *domain.UnknownBarcodeError
		notInOrder   *domain.BarcodeNotInOrderError
		notEmpty     *domain.ShelfNotEmptyError
		hasChildren  *domain.ShelfHasChildrenError
		inUse        *domain.ShelfInUseError
		cyclic       *domain.CyclicReparentError
		transition   *domain.InvalidTransitionError
		incomplete   *domain.OrderIncompleteError
		unfulfilable *domain.OrderNotFulfillableError
		inRoute      *domain.OrderInActiveRouteError
		active       *domain.SessionActiveError
	)

	switch {
	case stderrors.As(err, &insufficient):
		appErr := errors.ErrConflictWithCode(errors.CodeInsufficientStock, insufficient.Error()).
			WithDetails(map[string]string{
				"productId": insufficient.ProductID,
				"requested": itoa(insufficient.Requested),
				"available": itoa(insufficient.Available),
			})
		if insufficient.ShelfID != "" {
			appErr.WithDetail("shelfId", insufficient.ShelfID)
		}
		return appErr.Wrap(err)
	case stderrors.As(err, &overScan):
		appErr := errors.ErrConflictWithCode(errors.CodeOverScan, overScan.Error()).
			WithDetails(map[string]string{
				"barcode":   overScan.Barcode,
				"required":  itoa(overScan.Required),
				"scanned":   itoa(overScan.Scanned),
				"attempted": itoa(overScan.Attempted),
			})
		if overScan.OrderID != "" {
			appErr.WithDetail("orderId", overScan.OrderID)
		}
		return appErr.Wrap(err)
	case stderrors.As(err, &unknown):
		return errors.ErrConflictWithCode(errors.CodeUnknownBarcodeForRoute, unknown.Error()).
			WithDetails(map[string]string{
				"routeId":  unknown.RouteID,
				"barcode":  unknown.Barcode,
				"complete": strconv.FormatBool(unknown.Complete),
			}).Wrap(err)
	case stderrors.As(err, &notInOrder):
		return errors.ErrConflictWithCode(errors.CodeBarcodeNotInCurrentOrder, notInOrder.Error()).
			WithDetails(map[string]string{
				"sessionId": notInOrder.SessionID,
				"orderId":   notInOrder.OrderID,
				"barcode":   notInOrder.Barcode,
			}).Wrap(err)
	case stderrors.As(err, &notEmpty):
		return errors.ErrConflictWithCode(errors.CodeShelfNotEmpty, notEmpty.Error()).
			WithDetails(map[string]string{
				"shelfId":  notEmpty.ShelfID,
				"quantity": itoa(notEmpty.Quantity),
			}).Wrap(err)
	case stderrors.As(err, &hasChildren):
		return errors.ErrConflictWithCode(errors.CodeShelfHasChildren, hasChildren.Error()).
			WithDetails(map[string]string{
				"shelfId":  hasChildren.ShelfID,
				"children": itoa(hasChildren.Children),
			}).Wrap(err)
	case stderrors.As(err, &inUse):
		return errors.ErrConflictWithCode(errors.CodeShelfInUse, inUse.Error()).
			WithDetails(map[string]string{
				"shelfId": inUse.ShelfID,
				"routeId": inUse.RouteID,
			}).Wrap(err)
	case stderrors.As(err, &cyclic):
		return errors.ErrConflictWithCode(errors.CodeCyclicReparent, cyclic.Error()).
			WithDetails(map[string]string{
				"shelfId":     cyclic.ShelfID,
				"newParentId": cyclic.NewParentID,
			}).Wrap(err)
	case stderrors.As(err, &transition):
		appErr := errors.ErrConflictWithCode(errors.CodeInvalidStateTransition, transition.Error()).
			WithDetails(map[string]string{
				"entity": transition.Entity,
				"id":     transition.ID,
				"status": transition.From,
			})
		return appErr.Wrap(err)
	case stderrors.As(err, &incomplete):
		return errors.ErrConflictWithCode(errors.CodeOrderIncomplete, incomplete.Error()).
			WithDetails(map[string]string{
				"orderId":     incomplete.OrderID,
				"outstanding": formatOutstanding(incomplete.Outstanding),
			}).Wrap(err)
	case stderrors.As(err, &unfulfilable):
		return errors.ErrConflictWithCode(errors.CodeOrderNotFulfillable, unfulfilable.Error()).
			WithDetails(map[string]string{
				"orderId": unfulfilable.OrderID,
				"status":  string(unfulfilable.Status),
			}).Wrap(err)
	case stderrors.As(err, &inRoute):
		return errors.ErrConflictWithCode(errors.CodeRouteAlreadyActive, inRoute.Error()).
			WithDetails(map[string]string{
				"orderId": inRoute.OrderID,
				"routeId": inRoute.RouteID,
			}).Wrap(err)
	case stderrors.As(err, &active):
		return errors.ErrConflictWithCode(errors.CodeSessionAlreadyActive, active.Error()).
			WithDetails(map[string]string{
				"routeId":   active.RouteID,
				"sessionId": active.SessionID,
			}).Wrap(err)
	}

	switch {
	case stderrors.Is(err, domain.ErrShelfNotFound):
		return errors.ErrNotFound("shelf").Wrap(err)
	case stderrors.Is(err, domain.ErrRouteNotFound):
		return errors.ErrNotFound("route").Wrap(err)
	case stderrors.Is(err, domain.ErrSessionNotFound):
		return errors.ErrNotFound("packing session").Wrap(err)
	case stderrors.Is(err, domain.ErrOrderNotFound), stderrors.Is(err, domain.ErrOrderNotInSession):
		return errors.ErrNotFound("order").Wrap(err)
	case stderrors.Is(err, domain.ErrProductNotFound):
		return errors.ErrNotFound("product").Wrap(err)
	case stderrors.Is(err, domain.ErrConcurrentModification):
		return errors.ErrConflictWithCode(errors.CodeConcurrentModification, err.Error()).Wrap(err)
	case stderrors.Is(err, domain.ErrActiveRouteMembership):
		return errors.ErrConflictWithCode(errors.CodeRouteAlreadyActive, err.Error()).Wrap(err)
	case stderrors.Is(err, domain.ErrActiveSessionExists):
		return errors.ErrConflictWithCode(errors.CodeSessionAlreadyActive, err.Error()).Wrap(err)
	case stderrors.Is(err, domain.ErrDuplicateShelfBarcode):
		return errors.ErrConflictWithCode(errors.CodeDuplicateShelfBarcode, err.Error()).Wrap(err)
	case stderrors.Is(err, domain.ErrPackingShelfNotConfigured):
		return errors.ErrConflictWithCode(errors.CodePackingShelfNotConfigured, err.Error()).Wrap(err)
	case stderrors.Is(err, domain.ErrInvalidQuantity),
		stderrors.Is(err, domain.ErrSameShelf),
		stderrors.Is(err, domain.ErrEmptyRoute),
		stderrors.Is(err, domain.ErrDuplicateOrder),
		stderrors.Is(err, domain.ErrMixedWarehouses),
		stderrors.Is(err, domain.ErrParentInOtherWarehouse),
		stderrors.Is(err, domain.ErrInvalidShelfType),
		stderrors.Is(err, domain.ErrInvalidShelfName),
		stderrors.Is(err, domain.ErrInvalidMovementType),
		stderrors.Is(err, domain.ErrInvalidDirection),
		stderrors.Is(err, domain.ErrTransferFieldsMisused),
		stderrors.Is(err, domain.ErrBarcodeProductMismatch):
		return errors.ErrValidation(err.Error()).Wrap(err)
	}
	return err
}

// errorCode names an error for metrics labels
func errorCode(err error) string {
	if appErr, ok := errors.AsAppError(toAppError(err)); ok {
		return appErr.Code
	}
	return errors.CodeInternalError
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}

func formatOutstanding(outstanding map[string]int64) string {
	barcodes := make([]string, 0, len(outstanding))
	for b := range outstanding {
		barcodes = append(barcodes, b)
	}
	sort.Strings(barcodes)
	parts := make([]string, 0, len(barcodes))
	for _, b := range barcodes {
		parts = append(parts, fmt.Sprintf("%s:%d", b, outstanding[b]))
	}
	return strings.Join(parts, ",")
}
