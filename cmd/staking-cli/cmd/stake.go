package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"vedelegate-core/internal/staking"
)

var stakeAmount string

// stakeCmd 代表 stake 命令
var stakeCmd = &cobra.Command{
	Use:   "stake",
	Short: "把 B3TR 质押进自己的质押池",
	Long: `把指定数量的 B3TR 存入质押池并转换为 VOT3。
首次质押会自动建池并完成 Passport 委托握手，整笔交易原子执行。`,
	Run: func(cmd *cobra.Command, args []string) {
		runOperation("stake", stakeAmount, "", "")
	},
}

func init() {
	stakeCmd.Flags().StringVar(&stakeAmount, "amount", "", "质押数量 (显示单位, 例如 10.5)")
	_ = stakeCmd.MarkFlagRequired("amount")
	rootCmd.AddCommand(stakeCmd)
}

// runOperation 质押/取回共用的执行和输出逻辑
func runOperation(op, amount, token, recipient string) {
	s, err := buildStack(true)
	if err != nil {
		fmt.Println(err)
		return
	}
	owner := s.signer.Address().Hex()

	ctx, cancel := cliContext()
	defer cancel()

	fmt.Printf("正在执行 %s: %s 代币 (地址 %s)...\n", op, amount, owner)

	var result staking.OperationResult
	if op == "unstake" {
		result = s.svc.Unstake(ctx, owner, amount, token, recipient, s.signingCallback())
	} else {
		result = s.svc.Stake(ctx, owner, amount, s.signingCallback())
	}

	if result.Err != nil {
		fmt.Printf("操作失败 [%s]: %s\n", result.Err.Code, result.Err.Message)
		return
	}
	fmt.Println("---------------------------------------------------")
	fmt.Printf("交易已确认: %s\n", result.TxID)
	if result.Meta != nil {
		fmt.Printf("区块高度:   %d\n", result.Meta.BlockNumber)
	}
	fmt.Printf("子句数量:   %d\n", result.ClauseCount)
}
