package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"vedelegate-core/internal/staking"
)

var balanceOwner string

// balanceCmd 代表 balance 命令
var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "查询地址的代币余额和质押身份",
	Run: func(cmd *cobra.Command, args []string) {
		s, err := buildStack(false)
		if err != nil {
			fmt.Println(err)
			return
		}
		owner := s.ownerAddress(balanceOwner)
		if owner == "" {
			fmt.Println("请通过 --owner 指定地址或配置助记词")
			return
		}

		ctx, cancel := cliContext()
		defer cancel()

		id, err := s.svc.GetIdentity(ctx, owner)
		if err != nil {
			fmt.Printf("身份解析失败: %v\n", err)
			return
		}
		fmt.Println("---------------------------------------------------")
		fmt.Printf("地址 (Owner):          %s\n", id.Owner)
		fmt.Printf("Token ID:              %s\n", id.TokenID)
		fmt.Printf("Smart Account:         %s\n", id.SmartAccount)
		fmt.Printf("质押池已部署:          %v\n", id.HasPool)
		fmt.Printf("Passport 已委托:       %v\n", id.OwnerDelegatedPassport())
		fmt.Println("---------------------------------------------------")

		for _, target := range []struct {
			label string
			addr  string
		}{
			{"钱包余额", owner},
			{"质押余额", id.SmartAccount},
		} {
			view, err := s.svc.GetBalance(ctx, target.addr)
			if err != nil {
				fmt.Printf("%s读取失败: %v\n", target.label, err)
				continue
			}
			bal := view.Balance
			fmt.Printf("%s (%s):\n", target.label, target.addr)
			fmt.Printf("  B3TR:  %s\n", staking.FormatForDisplay(staking.FromRaw(bal.AvailableB3TR, staking.DefaultDecimals), 3))
			fmt.Printf("  VOT3:  %s\n", staking.FormatForDisplay(staking.FromRaw(bal.AvailableVOT3, staking.DefaultDecimals), 3))
		}

		if rewards, err := s.svc.GetRewards(ctx, id.SmartAccount); err == nil {
			fmt.Printf("可领取奖励:  %s %s\n", staking.FormatForDisplay(rewards.Display, 3), rewards.Symbol)
		}
	},
}

func init() {
	balanceCmd.Flags().StringVar(&balanceOwner, "owner", "", "要查询的地址 (默认签名人地址)")
	rootCmd.AddCommand(balanceCmd)
}
