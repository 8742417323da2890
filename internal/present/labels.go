// Package present turns coordinator snapshots and outcomes into the text a drop page shows.
package present

import (
	"fmt"
	"strings"

	"mintdrop/internal/drop"
)

// Button is the claim button label for the snapshot's affordance.
func Button(snap drop.Snapshot) string {
	switch snap.Affordance {
	case drop.NotConnected:
		return "sign in to mint"
	case drop.Loading:
		return "loading..."
	case drop.SoldOut:
		return "sold out"
	case drop.Pending:
		return "minting..."
	case drop.Ready:
		if !snap.Supply.PriceKnown {
			return "mint NFT"
		}
		return fmt.Sprintf("mint NFT (%s %s)", snap.Supply.UnitPrice, snap.Supply.Currency)
	default:
		return ""
	}
}

// Claimed is the "13/21 NFT's claimed" line, or a loading hint before counts resolve.
func Claimed(snap drop.Snapshot) string {
	if !snap.Supply.CountsResolved() {
		return "loading supply count..."
	}
	return fmt.Sprintf("%d/%d NFT's claimed", snap.Supply.Claimed, snap.Supply.Total)
}

// SignedIn is the header line for the connected wallet, empty when signed out.
func SignedIn(snap drop.Snapshot) string {
	if !snap.Identity.Present() {
		return ""
	}
	return "you're logged in with " + snap.Identity.Short()
}

// Notification phrases a claim outcome for a toast.
func Notification(o drop.Outcome) string {
	switch o.Kind {
	case drop.Success:
		if o.TokenID == "" {
			return "Woohoo.. you successfully minted!"
		}
		return fmt.Sprintf("Woohoo.. you successfully minted token #%s!", o.TokenID)
	case drop.UserRejected:
		return "Claim cancelled in your wallet."
	case drop.ContractReverted:
		if o.Reason == "" {
			return "The drop refused the claim."
		}
		return "The drop refused the claim: " + o.Reason
	case drop.NetworkError:
		msg := "Network problem while claiming"
		if o.TxHash != "" {
			msg += " (tx " + shortHash(o.TxHash) + ")"
		}
		return msg + ". Check your wallet before trying again."
	default:
		return ""
	}
}

// PendingNotification is shown while a claim is in flight.
func PendingNotification() string {
	return "Minting..."
}

func shortHash(h string) string {
	if len(h) <= 14 {
		return h
	}
	return strings.Join([]string{h[:8], h[len(h)-6:]}, "...")
}
